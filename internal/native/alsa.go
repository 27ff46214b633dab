// SPDX-License-Identifier: MIT
package native

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"

	"audiomap/internal/audio"
)

// ALSAAdapter reads the kernel's view of sound cards from /proc/asound. It
// needs no daemon and serves as the fallback when PulseAudio is absent.
type ALSAAdapter struct {
	fsys fs.FS
}

// NewALSAAdapter returns an adapter rooted at fsys. A nil fsys means the
// live /proc/asound tree.
func NewALSAAdapter(fsys fs.FS) *ALSAAdapter {
	if fsys == nil {
		fsys = os.DirFS("/proc/asound")
	}
	return &ALSAAdapter{fsys: fsys}
}

func (a *ALSAAdapter) Name() string { return "alsa" }

type alsaCard struct {
	Number   int
	ID       string
	Driver   string
	LongName string
}

// alsaRef is the handle attached to every ALSA device.
type alsaRef struct {
	Card   int
	Device int
	Stream string // "p", "c" or both
}

var (
	cardLine = regexp.MustCompile(`^\s*(\d+)\s+\[(\S+)\s*\]:\s+(\S+)\s+-\s+(.+)$`)
	pcmLine  = regexp.MustCompile(`^(\d+)-(\d+):\s*([^:]*?)\s*:\s*[^:]*?\s*:\s*(.*)$`)
)

func (a *ALSAAdapter) Enumerate(ctx context.Context) ([]audio.RawDescriptor, error) {
	cards, err := a.cards()
	if err != nil {
		return nil, err
	}

	data, err := fs.ReadFile(a.fsys, "pcm")
	if errors.Is(err, fs.ErrNotExist) {
		return []audio.RawDescriptor{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read /proc/asound/pcm: %w", err)
	}

	var raws []audio.RawDescriptor
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m := pcmLine.FindStringSubmatch(strings.TrimSpace(sc.Text()))
		if m == nil {
			continue
		}
		cardNum, _ := strconv.Atoi(m[1])
		devNum, _ := strconv.Atoi(m[2])
		card, ok := cards[cardNum]
		if !ok {
			continue
		}

		playback, capture := strings.Contains(m[4], "playback"), strings.Contains(m[4], "capture")
		var dir audio.Direction
		stream := ""
		switch {
		case playback && capture:
			dir, stream = audio.DirectionInputOutput, "pc"
		case playback:
			dir, stream = audio.DirectionOutput, "p"
		case capture:
			dir, stream = audio.DirectionInput, "c"
		}

		name := card.LongName
		if pcm := strings.TrimSpace(m[3]); pcm != "" {
			name = card.LongName + ": " + pcm
		}

		raws = append(raws, audio.RawDescriptor{
			NativeID:  fmt.Sprintf("hw:CARD=%s,DEV=%d", card.ID, devNum),
			Name:      name,
			Direction: dir,
			// The "default" PCM points at card 0 device 0 unless asoundrc says otherwise.
			IsDefault: cardNum == 0 && devNum == 0,
			Index:     -1,
			HostAPI:   "ALSA",
			Ref:       alsaRef{Card: cardNum, Device: devNum, Stream: stream},
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan /proc/asound/pcm: %w", err)
	}
	if raws == nil {
		raws = []audio.RawDescriptor{}
	}
	return raws, nil
}

func (a *ALSAAdapter) cards() (map[int]alsaCard, error) {
	data, err := fs.ReadFile(a.fsys, "cards")
	if err != nil {
		return nil, fmt.Errorf("ALSA not available: %w", err)
	}

	cards := make(map[int]alsaCard)
	for _, line := range strings.Split(string(data), "\n") {
		m := cardLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		cards[n] = alsaCard{Number: n, ID: m[2], Driver: m[3], LongName: strings.TrimSpace(m[4])}
	}
	return cards, nil
}

// Resolve reads the per-stream info file of the card.
func (a *ALSAAdapter) Resolve(ctx context.Context, ref any) (audio.Details, error) {
	r, ok := ref.(alsaRef)
	if !ok {
		return nil, fmt.Errorf("alsa: foreign device handle %T", ref)
	}

	cards, err := a.cards()
	if err != nil {
		return nil, err
	}
	card, ok := cards[r.Card]
	if !ok {
		return nil, fmt.Errorf("alsa: card %d no longer present", r.Card)
	}

	d := audio.Details{
		"alsa.card":      strconv.Itoa(card.Number),
		"alsa.card_id":   card.ID,
		"alsa.driver":    card.Driver,
		"alsa.device":    strconv.Itoa(r.Device),
		"alsa.hw":        fmt.Sprintf("hw:%d,%d", r.Card, r.Device),
		"alsa.card_name": card.LongName,
	}
	for _, s := range r.Stream {
		info := path.Join(fmt.Sprintf("card%d", r.Card), fmt.Sprintf("pcm%d%c", r.Device, s), "info")
		data, err := fs.ReadFile(a.fsys, info)
		if err != nil {
			continue
		}
		prefix := "alsa.playback."
		if s == 'c' {
			prefix = "alsa.capture."
		}
		for _, line := range strings.Split(string(data), "\n") {
			k, v, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			k, v = strings.TrimSpace(k), strings.TrimSpace(v)
			switch k {
			case "subname", "class", "subclass", "subdevices_count", "subdevices_avail":
				d[prefix+k] = v
			}
		}
	}
	return d, nil
}

var (
	_ audio.Adapter  = (*ALSAAdapter)(nil)
	_ audio.Resolver = (*ALSAAdapter)(nil)
)
