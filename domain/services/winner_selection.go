package services

import (
	"encoding/binary"

	"rafflepool/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SelectWinners maps seed to count distinct indices in [0, rosterSize), in rank order.
// It runs a partial Fisher-Yates shuffle over a sparse view of the roster so memory
// stays proportional to count rather than rosterSize.
func SelectWinners(seed common.Hash, rosterSize int64, count int) ([]int64, error) {
	if count <= 0 || rosterSize < int64(count) {
		return nil, domain.ErrInsufficientParticipants
	}

	stream := newSeedStream(seed)
	swapped := make(map[int64]int64, count*2)
	at := func(i int64) int64 {
		if v, ok := swapped[i]; ok {
			return v
		}
		return i
	}

	winners := make([]int64, count)
	for i := int64(0); i < int64(count); i++ {
		j := i + int64(stream.uniform(uint64(rosterSize-i)))
		vi, vj := at(i), at(j)
		swapped[j] = vi
		swapped[i] = vj
		winners[i] = vj
	}

	return winners, nil
}

// seedStream expands a seed into a sequence of uniform values via keccak256(seed || counter)
type seedStream struct {
	seed    common.Hash
	counter uint64
}

func newSeedStream(seed common.Hash) *seedStream {
	return &seedStream{seed: seed}
}

func (s *seedStream) next() uint64 {
	var buf [common.HashLength + 8]byte
	copy(buf[:], s.seed[:])
	binary.BigEndian.PutUint64(buf[common.HashLength:], s.counter)
	s.counter++
	return binary.BigEndian.Uint64(crypto.Keccak256(buf[:])[:8])
}

// uniform returns a value in [0, bound) without modulo bias
func (s *seedStream) uniform(bound uint64) uint64 {
	// 2^64 mod bound; values below it are rejected so the rest divide evenly
	threshold := -bound % bound
	for {
		r := s.next()
		if r >= threshold {
			return r % bound
		}
	}
}
