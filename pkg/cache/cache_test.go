package cache

import (
	"testing"

	"github.com/vns-go/vns/pkg/value"
)

func TestWriteThenReadRoundTrips(t *testing.T) {
	c := New()
	v := value.NewValue(0x1000, 0, value.Int32, 0, int32(42))

	c.Write(v)
	got, ok := c.Read(0x1000)
	if !ok {
		t.Fatal("expected cached value to be present")
	}
	if n, ok := got.Int32Val(); !ok || n != 42 {
		t.Fatalf("got.Int32Val() = (%d, %v), want (42, true)", n, ok)
	}
}

func TestReadMissingIsNotFound(t *testing.T) {
	c := New()
	if _, ok := c.Read(0x2000); ok {
		t.Fatal("expected miss for property never written")
	}
}

func TestWriteReplacesPriorValue(t *testing.T) {
	c := New()
	c.Write(value.NewValue(0x1000, 0, value.Int32, 0, int32(1)))
	c.Write(value.NewValue(0x1000, 0, value.Int32, 0, int32(2)))

	got, ok := c.Read(0x1000)
	if !ok {
		t.Fatal("expected value present")
	}
	if n, _ := got.Int32Val(); n != 2 {
		t.Fatalf("Int32Val() = %d, want 2", n)
	}
}

func TestCloseClearsEntries(t *testing.T) {
	c := New()
	c.Write(value.NewValue(0x1000, 0, value.Int32, 0, int32(1)))
	c.Close()

	if _, ok := c.Read(0x1000); ok {
		t.Fatal("expected cache to be empty after Close")
	}
}
