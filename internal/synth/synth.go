// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package synth generates synthetic MicroDAQ archives. Hit energies are
// drawn in MIP and converted back to ADC codes through the panel
// calibration, so a decoded archive reproduces the generated spectrum.
package synth

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/icescint/udaqtool/internal/archive"
	"github.com/icescint/udaqtool/pkg/calib"
	"github.com/icescint/udaqtool/pkg/udaq"
)

const (
	adcFullScale  = 0x0FFF
	ticksPerPulse = 1 << 24
)

// Config describes a synthetic archive
type Config struct {
	Start         time.Time
	Channels      []int
	HitBuffers    int           // per channel
	Interval      time.Duration // between hit buffers of a channel
	Seconds       int           // whole seconds per hit buffer
	HitsPerSecond float64
	MuonFraction  float64 // share of hits drawn from the muon peak
	Temperature   float64
	Order         udaq.ChecksumOrder
	BlockSize     int
	Seed          int64

	Table  *calib.Table
	AuxDAC float64
}

// DefaultConfig returns a small single-channel archive configuration
func DefaultConfig() Config {
	table := calib.DefaultTable
	return Config{
		Start:         time.Date(2021, 2, 14, 12, 0, 0, 0, time.UTC),
		Channels:      []int{3},
		HitBuffers:    4,
		Interval:      5 * time.Minute,
		Seconds:       10,
		HitsPerSecond: 50,
		MuonFraction:  0.3,
		Temperature:   250,
		Order:         udaq.ChecksumLittleEndian,
		BlockSize:     512,
		Seed:          1,
		Table:         &table,
		AuxDAC:        calib.AuxDAC,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if len(c.Channels) == 0 {
		return fmt.Errorf("no channels")
	}
	for _, ch := range c.Channels {
		if ch < 0 || ch >= calib.NumChannels {
			return fmt.Errorf("channel %d out of range 0-%d", ch, calib.NumChannels-1)
		}
	}
	if c.HitBuffers < 0 || c.Interval <= 0 {
		return fmt.Errorf("invalid hit buffer count %d or interval %v", c.HitBuffers, c.Interval)
	}
	if c.Seconds < 1 {
		return fmt.Errorf("seconds must be at least 1, got %d", c.Seconds)
	}
	if c.HitsPerSecond < 0 || c.MuonFraction < 0 || c.MuonFraction > 1 {
		return fmt.Errorf("invalid hit rate %v or muon fraction %v", c.HitsPerSecond, c.MuonFraction)
	}
	if c.BlockSize < udaq.WordSize {
		return fmt.Errorf("block size must be at least %d bytes", udaq.WordSize)
	}
	if c.Table == nil {
		return fmt.Errorf("no calibration table")
	}
	return nil
}

// Generate builds the members of a synthetic archive: per channel one
// monitor reading followed by the hit buffers.
func Generate(cfg Config) ([]archive.Member, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	src := rand.NewPCG(uint64(cfg.Seed), 0)
	rng := rand.New(src)

	var members []archive.Member
	for _, ch := range cfg.Channels {
		panel, err := cfg.Table.Panel(ch)
		if err != nil {
			return nil, err
		}
		mipPerADC, err := panel.MIPPerADC(cfg.Temperature, cfg.AuxDAC)
		if err != nil {
			return nil, err
		}

		when := cfg.Start.Add(time.Duration(ch) * time.Second)
		members = append(members, archive.Member{
			Name:    archive.Name(archive.TypeMonitor, ch, when, "bin"),
			Type:    archive.TypeMonitor,
			Channel: ch,
			Time:    when,
			Data:    udaq.EncodeMonitorFile(when, cfg.Temperature, cfg.Order),
		})

		g := newHitGen(src, rng, panel.ADCAmp, 1/mipPerADC)
		for k := 1; k <= cfg.HitBuffers; k++ {
			at := when.Add(time.Duration(k) * cfg.Interval)
			buf := g.buffer(cfg.Seconds, cfg.HitsPerSecond, cfg.MuonFraction)
			members = append(members, archive.Member{
				Name:    archive.Name(archive.TypeHitBuf, ch, at, "bin"),
				Type:    archive.TypeHitBuf,
				Channel: ch,
				Time:    at,
				Data:    udaq.EncodeHitFile(udaq.SplitBlocks(buf, cfg.BlockSize), cfg.Order),
			})
		}
	}

	archive.SortByTime(members)
	return members, nil
}

// Energy spectrum of generated hits, in MIP
const (
	muonPeak       = 1
	muonWidth      = 0.25
	muonTailMean   = 0.5
	backgroundMean = 0.2
	baselineNoise  = 2 // ADC counts
)

// hitGen draws hits for one panel
type hitGen struct {
	src       rand.Source
	rng       *rand.Rand
	amp       calib.ADCAmp
	adcPerMIP float64
	baseHG    float64
	baseLG    float64

	noise      distuv.Normal
	muon       distuv.Normal
	muonTail   distuv.Exponential
	background distuv.Exponential
}

func newHitGen(src rand.Source, rng *rand.Rand, amp calib.ADCAmp, adcPerMIP float64) *hitGen {
	return &hitGen{
		src:        src,
		rng:        rng,
		amp:        amp,
		adcPerMIP:  adcPerMIP,
		baseHG:     80 + rng.Float64()*40,
		baseLG:     40 + rng.Float64()*20,
		noise:      distuv.Normal{Mu: 0, Sigma: baselineNoise, Src: src},
		muon:       distuv.Normal{Mu: muonPeak, Sigma: muonWidth, Src: src},
		muonTail:   distuv.Exponential{Rate: 1 / muonTailMean, Src: src},
		background: distuv.Exponential{Rate: 1 / backgroundMean, Src: src},
	}
}

// buffer builds a hit buffer with the given number of whole seconds.
// Every second starts with a forced baseline readout.
func (g *hitGen) buffer(seconds int, rate, muonFraction float64) []byte {
	var words []uint32
	words = append(words, g.hits(rate/4, muonFraction)...) // partial leading second
	for s := 0; s < seconds+1; s++ {
		words = append(words, udaq.PPSWord())
		words = append(words, g.forced()...)
		words = append(words, g.hits(rate, muonFraction)...)
	}
	words = append(words, udaq.PPSWord())
	words = append(words, g.hits(rate/4, muonFraction)...) // partial trailing second
	return udaq.WordBytes(words)
}

func (g *hitGen) forced() []uint32 {
	return udaq.EncodeHit(true, 0, []udaq.Sample{
		{SubChannel: udaq.SubChannelHighGain, Code: g.code(g.baseHG + g.noise.Rand())},
		{SubChannel: udaq.SubChannelLowGain, Code: g.code(g.baseLG + g.noise.Rand())},
	})
}

func (g *hitGen) hits(rate, muonFraction float64) []uint32 {
	if rate <= 0 {
		return nil
	}
	n := int(distuv.Poisson{Lambda: rate, Src: g.src}.Rand())
	var words []uint32
	for i := 0; i < n; i++ {
		var mip float64
		if g.rng.Float64() < muonFraction {
			mip = math.Max(0, g.muon.Rand()+g.muonTail.Rand())
		} else {
			mip = g.background.Rand()
		}
		words = append(words, g.hit(mip)...)
	}
	return words
}

// hit encodes a triggered hit of the given energy. Both gains are always
// sampled; the high-gain channel saturates at full scale.
func (g *hitGen) hit(mip float64) []uint32 {
	adc := mip * g.adcPerMIP
	hg := g.code(g.baseHG + adc)
	lg := g.code(g.baseLG + (adc-g.amp.Offset)/g.amp.Scale)
	return udaq.EncodeHit(false, uint32(g.rng.IntN(ticksPerPulse)), []udaq.Sample{
		{SubChannel: udaq.SubChannelHighGain, Code: hg},
		{SubChannel: udaq.SubChannelLowGain, Code: lg},
	})
}

func (g *hitGen) code(v float64) uint16 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > adcFullScale {
		return adcFullScale
	}
	return uint16(v)
}
