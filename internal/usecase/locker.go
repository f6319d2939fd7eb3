package usecase

import "sync"

// roomLock serialises room-wide transitions while letting bets of different
// players run side by side under the read lock.
type roomLock struct {
	sync.RWMutex

	refs int

	mu      sync.Mutex
	players map[string]*playerLock
}

type playerLock struct {
	sync.Mutex

	refs int
}

func (that *roomLock) acquirePlayer(id string) *playerLock {
	that.mu.Lock()
	defer that.mu.Unlock()

	lock, ok := that.players[id]
	if !ok {
		lock = &playerLock{}
		that.players[id] = lock
	}
	lock.refs++
	return lock
}

func (that *roomLock) releasePlayer(id string, lock *playerLock) {
	that.mu.Lock()
	defer that.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(that.players, id)
	}
}

// locker hands out per-room locks. Entries live only while someone holds or
// waits for them.
type locker struct {
	mu    sync.Mutex
	rooms map[string]*roomLock
}

func newLocker() *locker {
	return &locker{
		rooms: make(map[string]*roomLock),
	}
}

func (that *locker) acquire(code string) *roomLock {
	that.mu.Lock()
	defer that.mu.Unlock()

	lock, ok := that.rooms[code]
	if !ok {
		lock = &roomLock{players: make(map[string]*playerLock)}
		that.rooms[code] = lock
	}
	lock.refs++
	return lock
}

func (that *locker) release(code string, lock *roomLock) {
	that.mu.Lock()
	defer that.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(that.rooms, code)
	}
}

// Lock - takes the room exclusively and returns the matching unlock.
func (that *locker) Lock(code string) func() {
	lock := that.acquire(code)
	lock.Lock()

	return func() {
		lock.Unlock()
		that.release(code, lock)
	}
}

// LockPlayer - shares the room and takes the player exclusively.
func (that *locker) LockPlayer(code, playerID string) func() {
	lock := that.acquire(code)
	lock.RLock()

	player := lock.acquirePlayer(playerID)
	player.Lock()

	return func() {
		player.Unlock()
		lock.releasePlayer(playerID, player)
		lock.RUnlock()
		that.release(code, lock)
	}
}

func (that *locker) RLock(code string) func() {
	lock := that.acquire(code)
	lock.RLock()

	return func() {
		lock.RUnlock()
		that.release(code, lock)
	}
}

func (that *locker) size() int {
	that.mu.Lock()
	defer that.mu.Unlock()
	return len(that.rooms)
}
