package tracker

import "sync"

// userLock は1ユーザー分のミューテックスと参照カウントを保持する。
type userLock struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex はキー（ユーザーID）ごとの相互排他を提供する。
// 異なるキーの操作は並行に進行でき、グローバルロックは存在しない。
// 参照カウントが0になったエントリは即座に削除されるため、
// ユーザー数に比例してマップが成長し続けることはない。
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

// newKeyedMutex はkeyedMutexを生成する。
func newKeyedMutex() *keyedMutex {
	return &keyedMutex{
		locks: make(map[string]*userLock),
	}
}

// lock は指定キーのミューテックスを獲得する。
func (k *keyedMutex) lock(key string) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &userLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
}

// unlock は指定キーのミューテックスを解放する。
// 待機者がいない場合はエントリをマップから削除する。
func (k *keyedMutex) unlock(key string) {
	k.mu.Lock()
	l := k.locks[key]
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	l.mu.Unlock()
}
