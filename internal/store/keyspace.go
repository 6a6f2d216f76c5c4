package store

import (
	"math/rand"
	"time"
)

// noExpire is the sentinel stored in the expiration index for "never"; in
// the external TTL/PTTL contract this is represented as -1.
const noExpire = int64(-1)

// Keyspace is one logical database: the key->Value map plus its expiration
// index. Every accessor performs lazy expiry first, per spec.md §4.3: a
// read of an expired key returns "missing" even if the periodic sweep
// hasn't run yet. Keyspace is not concurrency-safe by design — it is
// meant to be owned exclusively by one dbactor.Actor goroutine, the same
// single-writer assumption StandaloneDB made around its LRU cache.
type Keyspace struct {
	data   map[string]*Value
	expire map[string]int64 // key -> absolute expiry instant, ms since epoch
}

func NewKeyspace() *Keyspace {
	return &Keyspace{
		data:   make(map[string]*Value),
		expire: make(map[string]int64),
	}
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

// expireIfDue removes key if it has a past-due expiry entry. Returns true
// if the key was (or already had been) removed as expired.
func (ks *Keyspace) expireIfDue(key string) bool {
	at, ok := ks.expire[key]
	if !ok || at == noExpire {
		return false
	}
	if nowMs() < at {
		return false
	}
	delete(ks.data, key)
	delete(ks.expire, key)
	return true
}

// Get returns the value for key, applying lazy expiry first.
func (ks *Keyspace) Get(key string) (*Value, bool) {
	ks.expireIfDue(key)
	v, ok := ks.data[key]
	return v, ok
}

// GetMut is identical to Get; the value is always a pointer, so mutating
// it in place is always "for write" — the distinct name documents intent
// at call sites.
func (ks *Keyspace) GetMut(key string) (*Value, bool) {
	return ks.Get(key)
}

// Insert sets key to v, preserving any existing expiry (callers that want
// SET's "clear TTL" semantics call Persist explicitly afterward).
func (ks *Keyspace) Insert(key string, v *Value) {
	ks.data[key] = v
}

// Remove deletes key and its expiry entry. Returns true if the key existed
// (and was not already lazily expired).
func (ks *Keyspace) Remove(key string) bool {
	if ks.expireIfDue(key) {
		return false
	}
	_, ok := ks.data[key]
	if ok {
		delete(ks.data, key)
		delete(ks.expire, key)
	}
	return ok
}

// Exists reports whether key is present after lazy expiry.
func (ks *Keyspace) Exists(key string) bool {
	ks.expireIfDue(key)
	_, ok := ks.data[key]
	return ok
}

// Expire sets key's absolute expiry to ms milliseconds from now. Returns
// false if key does not exist. ms<=0 deletes the key immediately (Redis
// semantics: an expiry in the past takes effect immediately).
func (ks *Keyspace) Expire(key string, ms int64) bool {
	ks.expireIfDue(key)
	if _, ok := ks.data[key]; !ok {
		return false
	}
	if ms <= 0 {
		delete(ks.data, key)
		delete(ks.expire, key)
		return true
	}
	ks.expire[key] = nowMs() + ms
	return true
}

// ExpireAt sets key's absolute expiry to the given unix-ms instant.
// Used by PEXPIREAT/AOF replay, which store absolute time so a restart
// never "extends" a TTL that was already ticking down.
func (ks *Keyspace) ExpireAt(key string, atMs int64) bool {
	ks.expireIfDue(key)
	if _, ok := ks.data[key]; !ok {
		return false
	}
	if atMs <= nowMs() {
		delete(ks.data, key)
		delete(ks.expire, key)
		return true
	}
	ks.expire[key] = atMs
	return true
}

// Persist clears key's expiry. Returns true if an expiry was actually
// cleared.
func (ks *Keyspace) Persist(key string) bool {
	ks.expireIfDue(key)
	if _, ok := ks.data[key]; !ok {
		return false
	}
	if _, ok := ks.expire[key]; !ok {
		return false
	}
	delete(ks.expire, key)
	return true
}

// TTLMillis returns -2 for an unknown key, -1 for no expiry, else the
// remaining milliseconds.
func (ks *Keyspace) TTLMillis(key string) int64 {
	if ks.expireIfDue(key) {
		return -2
	}
	if _, ok := ks.data[key]; !ok {
		return -2
	}
	at, ok := ks.expire[key]
	if !ok {
		return -1
	}
	remaining := at - nowMs()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ExpireAtMs returns the raw absolute expiry (unix ms) for key, and
// whether one is set, without touching lazy expiry bookkeeping — used by
// the AOF writer to translate a relative EXPIRE into an absolute
// PEXPIREAT line.
func (ks *Keyspace) ExpireAtMs(key string) (int64, bool) {
	at, ok := ks.expire[key]
	return at, ok
}

// RandomKey returns a uniformly random live key, or "" if the keyspace is
// empty. Expired-but-not-yet-swept keys are filtered out before the draw.
func (ks *Keyspace) RandomKey() (string, bool) {
	if len(ks.data) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(ks.data))
	for k := range ks.data {
		if at, ok := ks.expire[k]; ok && at != noExpire && nowMs() >= at {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return "", false
	}
	return keys[rand.Intn(len(keys))], true
}

// Keys returns every live key matching pattern (see glob.go for the
// grammar).
func (ks *Keyspace) Keys(pattern string) []string {
	matcher, err := compileGlob(pattern)
	if err != nil {
		return nil
	}
	out := make([]string, 0)
	for k := range ks.data {
		if ks.expireIfDue(k) {
			continue
		}
		if matcher(k) {
			out = append(out, k)
		}
	}
	return out
}

// Clear removes every key and expiry entry.
func (ks *Keyspace) Clear() {
	ks.data = make(map[string]*Value)
	ks.expire = make(map[string]int64)
}

// Len reports the number of live keys (used by DBSIZE); expired-but-not
// swept keys are lazily reaped as part of this count so DBSIZE never
// over-reports.
func (ks *Keyspace) Len() int {
	n := 0
	for k := range ks.data {
		if ks.expireIfDue(k) {
			continue
		}
		n++
	}
	return n
}

// SweepExpired removes every key whose expiry has passed. Driven by the
// manager's periodic CleanExpired message (spec.md §4.4), independent of
// the lazy expiry every accessor already performs.
func (ks *Keyspace) SweepExpired() int {
	now := nowMs()
	removed := 0
	for k, at := range ks.expire {
		if at != noExpire && now >= at {
			delete(ks.data, k)
			delete(ks.expire, k)
			removed++
		}
	}
	return removed
}

// Snapshot returns a deep-enough copy for the persistence layer: new top
// level maps, but Value pointers are shared read-only views taken at a
// single point inside the actor (actors never mutate in place across a
// suspension point, so this is safe without cloning every Value).
func (ks *Keyspace) Snapshot() (map[string]*Value, map[string]int64) {
	data := make(map[string]*Value, len(ks.data))
	for k, v := range ks.data {
		data[k] = v
	}
	exp := make(map[string]int64, len(ks.expire))
	for k, at := range ks.expire {
		exp[k] = at
	}
	return data, exp
}

// Restore replaces the keyspace contents wholesale — used when loading a
// snapshot file or an incoming replication blob.
func (ks *Keyspace) Restore(data map[string]*Value, expire map[string]int64) {
	if data == nil {
		data = make(map[string]*Value)
	}
	if expire == nil {
		expire = make(map[string]int64)
	}
	ks.data = data
	ks.expire = expire
}
