package reservation

import "sync"

// vehicleLocks 按车辆 ID 串行化“查冲突 → 写预订 → 写封锁”这段临界区。
// 同一辆车上并发的两个 create/modify/cancel 必然先后执行，
// 后来者在事务内能看到前者的写入，从而得到 Conflict 而不是双重预订。
type vehicleLocks struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newVehicleLocks() *vehicleLocks {
	return &vehicleLocks{locks: make(map[uint]*sync.Mutex)}
}

// Lock 获取某辆车的互斥锁，返回解锁函数。
// 锁对象按需创建并常驻；车辆数量有限，不做回收。
func (vl *vehicleLocks) Lock(vehicleID uint) func() {
	vl.mu.Lock()
	m, ok := vl.locks[vehicleID]
	if !ok {
		m = &sync.Mutex{}
		vl.locks[vehicleID] = m
	}
	vl.mu.Unlock()

	m.Lock()
	return m.Unlock
}
