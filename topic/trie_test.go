package topic

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestNewMemoryTrie(t *testing.T) {
	trie := NewMemoryTrie()
	if trie == nil {
		t.Fatal("NewMemoryTrie() should return a non-nil trie")
	}
	if trie.root == nil {
		t.Fatal("trie root should not be nil")
	}
}

func TestTrieSubscribe(t *testing.T) {
	trie := NewMemoryTrie()

	if err := trie.Subscribe("test/topic"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	found, ok := trie.Find("test/topic")
	if !ok {
		t.Error("should find subscribed topic")
	}
	if !reflect.DeepEqual(found, []string{"test/topic"}) {
		t.Errorf("Find() = %v, want [test/topic]", found)
	}
}

func TestTrieUnsubscribe(t *testing.T) {
	trie := NewMemoryTrie()
	_ = trie.Subscribe("test/topic")
	trie.Unsubscribe("test/topic")

	if _, ok := trie.Find("test/topic"); ok {
		t.Error("should not find unsubscribed topic")
	}
	if len(trie.root.next) != 0 {
		t.Errorf("unused nodes should be pruned, got %v", trie.root.paths())
	}
}

func TestTrieUnsubscribeKeepsSiblings(t *testing.T) {
	trie := NewMemoryTrie()
	_ = trie.Subscribe("a/b")
	_ = trie.Subscribe("a/b/c")
	trie.Unsubscribe("a/b")

	if _, ok := trie.Find("a/b"); ok {
		t.Error("a/b should be removed")
	}
	if _, ok := trie.Find("a/b/c"); !ok {
		t.Error("a/b/c should survive removal of a/b")
	}
}

func TestTrieWildcardPlus(t *testing.T) {
	trie := NewMemoryTrie()
	_ = trie.Subscribe("test/+/data")

	if _, ok := trie.Find("test/device1/data"); !ok {
		t.Error("+ wildcard should match single level")
	}
	if _, ok := trie.Find("test/device1/sensor/data"); ok {
		t.Error("+ wildcard should not match multiple levels")
	}
}

func TestTrieWildcardHash(t *testing.T) {
	trie := NewMemoryTrie()
	_ = trie.Subscribe("test/#")

	for _, name := range []string{"test", "test/device1/data", "test/device1/sensor/temperature"} {
		if _, ok := trie.Find(name); !ok {
			t.Errorf("# wildcard should match %s", name)
		}
	}
	if _, ok := trie.Find("other/data"); ok {
		t.Error("# wildcard should not match other/data")
	}
}

func TestTrieMultipleMatches(t *testing.T) {
	trie := NewMemoryTrie()
	for _, filter := range []string{"sport/tennis/player1", "sport/+/player1", "sport/#", "#", "+/+", "news/#"} {
		if err := trie.Subscribe(filter); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", filter, err)
		}
	}

	found, ok := trie.Find("sport/tennis/player1")
	if !ok {
		t.Fatal("should match")
	}
	want := []string{"#", "sport/#", "sport/+/player1", "sport/tennis/player1"}
	if !reflect.DeepEqual(found, want) {
		t.Errorf("Find() = %v, want %v", found, want)
	}
}

func TestTrieDollarTopics(t *testing.T) {
	trie := NewMemoryTrie()
	_ = trie.Subscribe("#")
	_ = trie.Subscribe("+/monitor/Clients")
	_ = trie.Subscribe("$SYS/#")

	// 以 $ 开头的主题名不能匹配以通配符开头的过滤器 [MQTT-4.7.2-1]
	found, ok := trie.Find("$SYS/monitor/Clients")
	if !ok {
		t.Fatal("$SYS/# should match")
	}
	if !reflect.DeepEqual(found, []string{"$SYS/#"}) {
		t.Errorf("Find() = %v, want [$SYS/#]", found)
	}
}

func TestTrieUnsubscribeNonExistent(t *testing.T) {
	trie := NewMemoryTrie()
	trie.Unsubscribe("non/existent/topic")

	if _, ok := trie.Find("non/existent/topic"); ok {
		t.Error("should not find non-existent topic")
	}
}

func TestTrieUnsubscribePrefixOnly(t *testing.T) {
	trie := NewMemoryTrie()
	_ = trie.Subscribe("a/b/c")
	// "a/b" 只是路径上的节点, 不是订阅过的过滤器
	trie.Unsubscribe("a/b")

	if _, ok := trie.Find("a/b/c"); !ok {
		t.Error("a/b/c should still match")
	}
}

func TestTrieComplexWildcards(t *testing.T) {
	trie := NewMemoryTrie()
	_ = trie.Subscribe("home/+/+/temperature")

	if _, ok := trie.Find("home/living/room/temperature"); !ok {
		t.Error("complex wildcard should match")
	}
	if _, ok := trie.Find("home/living/temperature"); ok {
		t.Error("complex wildcard should not match a shorter topic")
	}
}

func TestTrieRejectsInvalidFilter(t *testing.T) {
	trie := NewMemoryTrie()
	if err := trie.Subscribe(""); !errors.Is(err, ErrEmpty) {
		t.Errorf("Subscribe(\"\") error = %v, want ErrEmpty", err)
	}
	if err := trie.Subscribe("a/#/b"); !errors.Is(err, ErrBadMultiLevel) {
		t.Errorf("Subscribe(a/#/b) error = %v, want ErrBadMultiLevel", err)
	}
}

func TestTrieString(t *testing.T) {
	trie := NewMemoryTrie()
	_ = trie.Subscribe("a/b")
	s := trie.String()
	if !strings.Contains(s, "path=a") || !strings.Contains(s, `filter="a/b"`) {
		t.Errorf("String() = %q", s)
	}
}

func TestTrieNodePaths(t *testing.T) {
	trie := NewMemoryTrie()
	_ = trie.Subscribe("test2")
	_ = trie.Subscribe("test1")

	paths := trie.root.paths()
	if !reflect.DeepEqual(paths, []string{"test1", "test2"}) {
		t.Errorf("paths() = %v, want sorted [test1 test2]", paths)
	}
}
