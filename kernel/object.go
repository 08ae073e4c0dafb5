package kernel

import "kestrel/kernel/kerr"

// Type tags a kernel object.
type Type uint8

const (
	TypeTask Type = iota + 1
	TypeSemaphore
	TypeMutex
	TypeQueue
	TypeEventGroup
	TypeTimer
	TypeMemoryPool
	TypeDevice
)

func (t Type) String() string {
	switch t {
	case TypeTask:
		return "task"
	case TypeSemaphore:
		return "semaphore"
	case TypeMutex:
		return "mutex"
	case TypeQueue:
		return "queue"
	case TypeEventGroup:
		return "event_group"
	case TypeTimer:
		return "timer"
	case TypeMemoryPool:
		return "memory_pool"
	case TypeDevice:
		return "device"
	default:
		return "unknown"
	}
}

// ObjFlags describe who owns an object's storage.
type ObjFlags uint8

const (
	// ObjStatic objects use caller-provided storage.
	ObjStatic ObjFlags = 1 << iota
	// ObjDynamic objects were allocated by the kernel.
	ObjDynamic
	// ObjSystem objects belong to the kernel itself.
	ObjSystem
)

// Object is the identity every kernel object embeds.
type Object struct {
	name    string
	typ     Type
	flags   ObjFlags
	created uint64
	refs    uint32
	deleted bool
}

func (o *Object) Name() string    { return o.name }
func (o *Object) Type() Type      { return o.typ }
func (o *Object) Flags() ObjFlags { return o.flags }
func (o *Object) Created() uint64 { return o.created }
func (o *Object) Refs() uint32    { return o.refs }
func (o *Object) object() *Object { return o }

// Ref takes a reference.
func (o *Object) Ref() { o.refs++ }

// Unref drops a reference and reports whether none remain.
func (o *Object) Unref() bool {
	if o.refs > 0 {
		o.refs--
	}
	return o.refs == 0
}

// objectHolder is implemented by every type embedding Object.
type objectHolder interface {
	object() *Object
}

// initObject sets identity and links o into the traversal list. Per-type
// registries are separate. Called with the critical section held.
func (k *Kernel) initObject(o *Object, typ Type, name string, flags ObjFlags) {
	o.name = name
	o.typ = typ
	o.flags = flags
	o.created = k.clock.Now()
	o.refs = 1
	o.deleted = false
	k.objects.PushBack(o)
}

// dropObject marks o deleted and unlinks it from the traversal list.
func (k *Kernel) dropObject(o *Object) {
	o.deleted = true
	o.refs = 0
	if i := k.objects.Index(func(x *Object) bool { return x == o }); i >= 0 {
		k.objects.Remove(i)
	}
}

// Objects calls fn for every live object until fn returns false.
func (k *Kernel) Objects(fn func(*Object) bool) {
	st := k.crit.Enter()
	list := make([]*Object, 0, k.objects.Len())
	for i := 0; i < k.objects.Len(); i++ {
		list = append(list, k.objects.At(i))
	}
	k.crit.Exit(st)

	for _, o := range list {
		if !fn(o) {
			return
		}
	}
}

// withObject runs fn under the critical section unless o was deleted.
func (k *Kernel) withObject(o *Object, fn func() error) error {
	st := k.crit.Enter()
	defer k.crit.Exit(st)
	if o.deleted {
		return kerr.Deleted
	}
	return fn()
}
