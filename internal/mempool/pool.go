package mempool

import (
	"sync"
)

// Sized pools for []bool and []int64 buffers to reduce allocations on the
// per-image binarization and integral-image hot paths.

var (
	boolPools  sync.Map // key: size class (int), value: *sync.Pool
	int64Pools sync.Map // key: size class (int), value: *sync.Pool
)

// sizeClass rounds n up to the next multiple of 1024 to reduce churn.
func sizeClass(n int) int {
	if n <= 1024 {
		return 1024
	}
	const step = 1024
	r := (n + step - 1) / step
	return r * step
}

// GetBool retrieves a []bool buffer of at least n elements from the pool.
// The returned slice has length n and is zeroed. The caller must return it
// via PutBool when done.
func GetBool(n int) []bool {
	cls := sizeClass(n)
	pAny, _ := boolPools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]bool, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		buf := make([]bool, cls)
		return buf[:n]
	}
	buf, ok := p.Get().([]bool)
	if !ok || cap(buf) < cls {
		buf = make([]bool, cls)
	} else {
		buf = buf[:cap(buf)]
	}
	for i := range buf[:n] {
		buf[i] = false
	}
	return buf[:n]
}

// PutBool returns a buffer to the pool. It is safe to pass a nil slice.
func PutBool(buf []bool) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	pAny, _ := boolPools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]bool, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return
	}
	p.Put(buf[:cap(buf)]) //nolint:staticcheck
}

// GetInt64 retrieves a []int64 buffer of at least n elements from the pool.
// The returned slice has length n and is zeroed. The caller must return it
// via PutInt64 when done.
func GetInt64(n int) []int64 {
	cls := sizeClass(n)
	pAny, _ := int64Pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]int64, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		buf := make([]int64, cls)
		return buf[:n]
	}
	buf, ok := p.Get().([]int64)
	if !ok || cap(buf) < cls {
		buf = make([]int64, cls)
	} else {
		buf = buf[:cap(buf)]
	}
	for i := range buf[:n] {
		buf[i] = 0
	}
	return buf[:n]
}

// PutInt64 returns a buffer to the pool. It is safe to pass a nil slice.
func PutInt64(buf []int64) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	pAny, _ := int64Pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]int64, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return
	}
	p.Put(buf[:cap(buf)]) //nolint:staticcheck
}
