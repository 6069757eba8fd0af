package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPut(t *testing.T) {
	p := New(func() []int { return make([]int, 0, 8) })

	s := p.Get()
	assert.Len(t, s, 0)
	s = append(s, 1, 2, 3)
	p.Put(s[:0])

	s = p.Get()
	assert.Len(t, s, 0)
}

func TestConcurrent(t *testing.T) {
	p := New(func() *[]byte {
		b := make([]byte, 0, 64)
		return &b
	})

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 1000; j++ {
				b := p.Get()
				*b = append((*b)[:0], byte(j))
				p.Put(b)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
