// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package udaq

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// fuzzSetup returns the generator and round count of a fuzz test. FUZZ_SEED
// and FUZZ_ROUNDS override the time seed and the default of 1000 rounds;
// both are logged so a failing run can be replayed.
func fuzzSetup(t *testing.T) (*rand.Rand, int) {
	t.Helper()

	seed := time.Now().UnixNano()
	if v, err := strconv.ParseInt(os.Getenv("FUZZ_SEED"), 10, 64); err == nil {
		seed = v
	}
	rounds := 1000
	if v, err := strconv.Atoi(os.Getenv("FUZZ_ROUNDS")); err == nil && v > 0 {
		rounds = v
	}

	t.Logf("replay with FUZZ_SEED=%d FUZZ_ROUNDS=%d", seed, rounds)
	return rand.New(rand.NewSource(seed)), rounds
}

// randomBytes returns n random bytes biased towards zeros so stuffing is exercised
func randomBytes(rng *rand.Rand, n int) []byte {
	data := make([]byte, n)
	for i := range data {
		if rng.Intn(4) == 0 {
			data[i] = 0
		} else {
			data[i] = byte(rng.Intn(256))
		}
	}
	return data
}

// ============================================================
// Stuffing Fuzz Tests
// ============================================================

func TestFuzzStuff_RoundTrip(t *testing.T) {
	rng, rounds := fuzzSetup(t)

	for i := 0; i < rounds; i++ {
		data := randomBytes(rng, rng.Intn(1024))
		stuffed := Stuff(data)
		if bytes.IndexByte(stuffed, Sentinel) >= 0 {
			t.Fatalf("round %d: stuffed data contains sentinel", i)
		}
		back, err := Unstuff(stuffed)
		if err != nil {
			t.Fatalf("round %d: Unstuff error: %v", i, err)
		}
		if !bytes.Equal(back, data) {
			t.Fatalf("round %d: round trip mismatch", i)
		}
	}
}

func TestFuzzUnstuff_RandomBytes(t *testing.T) {
	rng, rounds := fuzzSetup(t)

	for i := 0; i < rounds; i++ {
		data := randomBytes(rng, rng.Intn(300)+1)
		// must not panic
		Unstuff(data)
	}
}

// ============================================================
// Checksum Fuzz Tests
// ============================================================

func TestFuzzChecksum_ValidateOwnChecksum(t *testing.T) {
	rng, rounds := fuzzSetup(t)
	d := NewDecoder(ChecksumLittleEndian)

	for i := 0; i < rounds; i++ {
		payload := randomBytes(rng, rng.Intn(200)+MinPayload)
		raw := EncodeFrame(payload[0], payload[1:], ChecksumLittleEndian)

		got, err := d.DecodeFrame(raw)
		if err != nil {
			t.Fatalf("round %d: DecodeFrame error: %v", i, err)
		}
		if !bytes.Equal(got, payload[1:]) {
			t.Fatalf("round %d: payload mismatch", i)
		}
	}
}

// ============================================================
// Frame Parser Fuzz Tests
// ============================================================

func TestFuzzScan_RandomWords(t *testing.T) {
	rng, rounds := fuzzSetup(t)

	for i := 0; i < rounds; i++ {
		words := make([]uint32, rng.Intn(256))
		for j := range words {
			switch rng.Intn(4) {
			case 0:
				words[j] = PPSWord()
			default:
				words[j] = rng.Uint32()
			}
		}
		c, err := ParseHitBuffer(WordBytes(words))
		if err == nil && (c.Seconds < 1 || c.Hits < 0) {
			t.Fatalf("round %d: invalid counts %+v without error", i, c)
		}
	}
}

func TestFuzzHitFile_RoundTrip(t *testing.T) {
	rng, rounds := fuzzSetup(t)
	d := NewDecoder(ChecksumBigEndian)

	for i := 0; i < rounds; i++ {
		buf := randomBytes(rng, 4*rng.Intn(128))
		file := EncodeHitFile(SplitBlocks(buf, 1+rng.Intn(64)), ChecksumBigEndian)

		got, err := d.DecodeHitFile(file)
		if err != nil {
			t.Fatalf("round %d: DecodeHitFile error: %v", i, err)
		}
		if !bytes.Equal(got, buf) {
			t.Fatalf("round %d: reassembled buffer mismatch", i)
		}
	}
}
