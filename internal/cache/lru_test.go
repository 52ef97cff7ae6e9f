package cache_test

import (
	"testing"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/yfsfs/yfsd/internal/cache"
)

func TestLRU(t *testing.T) { RunTests(t) }

type LRUTest struct {
}

func init() { RegisterTestSuite(&LRUTest{}) }

func (t *LRUTest) GetMissOnEmpty() {
	c := cache.New[string](2)
	_, ok := c.Get(1)
	ExpectFalse(ok)
}

func (t *LRUTest) PutThenGet() {
	c := cache.New[string](2)
	c.Put(1, "a", nil)
	v, ok := c.Get(1)
	AssertTrue(ok)
	ExpectEq("a", v)
}

func (t *LRUTest) EvictsLeastRecentlyUsed() {
	c := cache.New[string](2)

	var evicted []int
	onEvict := func(k int, v string, dirty bool) { evicted = append(evicted, k) }

	c.Put(1, "a", onEvict)
	c.Put(2, "b", onEvict)
	c.MarkDirty(1) // only dirty evictions are reported to onEvict
	c.MarkDirty(2)
	c.Get(1) // 1 is now MRU, 2 is LRU
	c.Put(3, "c", onEvict)

	ExpectThat(evicted, ElementsAre(2))
	ExpectFalse(c.Contains(2))
	ExpectTrue(c.Contains(1))
	ExpectTrue(c.Contains(3))
}

func (t *LRUTest) EvictionOnlyCallsBackForDirtyEntries() {
	c := cache.New[string](1)

	called := false
	onEvict := func(k int, v string, dirty bool) { called = true }

	c.Put(1, "a", onEvict)
	c.Put(2, "b", onEvict)
	ExpectFalse(called)
}

func (t *LRUTest) EvictionWritesBackDirtyEntries() {
	c := cache.New[string](1)

	var gotKey int
	var gotValue string
	onEvict := func(k int, v string, dirty bool) {
		gotKey, gotValue = k, v
	}

	c.Put(1, "a", onEvict)
	c.MarkDirty(1)
	c.Put(2, "b", onEvict)

	ExpectEq(1, gotKey)
	ExpectEq("a", gotValue)
}

func (t *LRUTest) RemoveReturnsDirtyBit() {
	c := cache.New[string](2)
	c.Put(1, "a", nil)
	c.MarkDirty(1)

	v, dirty, ok := c.Remove(1)
	AssertTrue(ok)
	ExpectEq("a", v)
	ExpectTrue(dirty)
	ExpectFalse(c.Contains(1))
}

func (t *LRUTest) UpdatePreservesRecencyAndDirtyBit() {
	c := cache.New[string](2)
	c.Put(1, "a", nil)
	c.MarkDirty(1)
	c.Update(1, "a2")

	v, ok := c.Peek(1)
	AssertTrue(ok)
	ExpectEq("a2", v)
	ExpectTrue(c.Dirty(1))
}

func (t *LRUTest) FlushAllVisitsDirtyEntriesAndClearsBit() {
	c := cache.New[string](3)
	c.Put(1, "a", nil)
	c.Put(2, "b", nil)
	c.MarkDirty(1)
	c.MarkDirty(2)

	seen := make(map[int]string)
	c.FlushAll(func(k int, v string) { seen[k] = v })

	ExpectThat(seen, DeepEquals(map[int]string{1: "a", 2: "b"}))
	ExpectFalse(c.Dirty(1))
	ExpectFalse(c.Dirty(2))
}

func (t *LRUTest) EachVisitsMRUToLRU() {
	c := cache.New[string](3)
	c.Put(1, "a", nil)
	c.Put(2, "b", nil)
	c.Put(3, "c", nil)

	var keys []int
	c.Each(func(k int, v string, dirty bool) { keys = append(keys, k) })
	ExpectThat(keys, ElementsAre(3, 2, 1))
}

func (t *LRUTest) ReinsertingAnExistingKeyReplacesItsValue() {
	c := cache.New[string](2)
	c.Put(1, "a", nil)
	c.Put(1, "a2", nil)

	ExpectEq(1, c.Len())
	v, ok := c.Peek(1)
	AssertTrue(ok)
	ExpectEq("a2", v)
}
