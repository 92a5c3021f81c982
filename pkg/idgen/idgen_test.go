package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountNumberFormat(t *testing.T) {
	g := NewAccountNumberGenerator(42)
	for i := 0; i < 1000; i++ {
		n := g.Next()
		require.True(t, IsAccountNumber(n), n)
	}
}

func TestTransactionIDFormat(t *testing.T) {
	g := NewTransactionIDGenerator(7)
	for i := 0; i < 1000; i++ {
		id := g.Next()
		require.True(t, IsTransactionID(id), id)
	}
	assert.False(t, IsTransactionID("TXN123"))
	assert.False(t, IsTransactionID("ABC1234567890"))
	assert.False(t, IsTransactionID("TXN12345678x0"))
}

func TestDigitsIsDeterministicPerSeed(t *testing.T) {
	a := NewAccountNumberGenerator(99)
	b := NewAccountNumberGenerator(99)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestSequenceRepeatsLastValue(t *testing.T) {
	s := NewSequence("111111111111", "222222222222")
	assert.Equal(t, "111111111111", s.Next())
	assert.Equal(t, "222222222222", s.Next())
	assert.Equal(t, "222222222222", s.Next())
}

func TestReferencesAreUnique(t *testing.T) {
	refs, err := NewReferences(1)
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				ref := refs.Next()
				mu.Lock()
				seen[ref] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 8*500)
	for ref := range seen {
		assert.True(t, strings.HasPrefix(ref, ReferencePrefix))
		break
	}
}

func TestNewReferencesRejectsBadWorker(t *testing.T) {
	_, err := NewReferences(5000)
	assert.Error(t, err)
}
