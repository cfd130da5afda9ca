package scene

import (
	"errors"
	"maps"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// GridSize is the number of launchable pads (8x8)
const GridSize = 64

var (
	ErrInvalidGridPosition = errors.New("grid position out of range")
	ErrSceneNotFound       = errors.New("scene not found")
)

// Scene is a named snapshot of CC values, keyed "channel:number"
type Scene struct {
	ID          string                    `json:"id" yaml:"id"`
	Name        string                    `json:"name" yaml:"name"`
	Description string                    `json:"description,omitempty" yaml:"description,omitempty"`
	Trigger     TriggerMode               `json:"trigger" yaml:"trigger"`
	Values      map[string]ParameterValue `json:"values" yaml:"values"`
	Tags        []string                  `json:"tags,omitempty" yaml:"tags,omitempty"`

	GridPosition *int      `json:"gridPosition,omitempty" yaml:"gridPosition,omitempty"`
	Color        *[3]uint8 `json:"color,omitempty" yaml:"color,omitempty"`
	Favorite     bool      `json:"favorite,omitempty" yaml:"favorite,omitempty"`
}

func New(id, name string) *Scene {
	return &Scene{
		ID:      id,
		Name:    name,
		Trigger: Immediate,
		Values:  make(map[string]ParameterValue),
	}
}

// Add stores a parameter, replacing any existing one for the same channel/number
func (s *Scene) Add(p ParameterValue) *Scene {
	if s.Values == nil {
		s.Values = make(map[string]ParameterValue)
	}
	p = p.Clamped()
	s.Values[p.Key()] = p
	return s
}

func (s *Scene) AddAll(params ...ParameterValue) *Scene {
	for _, p := range params {
		s.Add(p)
	}
	return s
}

func (s *Scene) Get(channel, number int) (ParameterValue, bool) {
	p, ok := s.Values[Key(channel, number)]
	return p, ok
}

func (s *Scene) Remove(channel, number int) (ParameterValue, bool) {
	k := Key(channel, number)
	p, ok := s.Values[k]
	if ok {
		delete(s.Values, k)
	}
	return p, ok
}

// Params returns the scene's values ordered by channel then number
func (s *Scene) Params() []ParameterValue {
	out := make([]ParameterValue, 0, len(s.Values))
	for _, p := range s.Values {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Channel != out[j].Channel {
			return out[i].Channel < out[j].Channel
		}
		return out[i].Number < out[j].Number
	})
	return out
}

// SetGridPosition assigns the pad the scene lives on. Positions outside
// the grid are ignored.
func (s *Scene) SetGridPosition(pos int, color *[3]uint8) *Scene {
	if pos < 0 || pos >= GridSize {
		return s
	}
	s.GridPosition = &pos
	if color != nil {
		c := *color
		s.Color = &c
	}
	return s
}

func (s *Scene) WithTrigger(t TriggerMode) *Scene {
	s.Trigger = t
	return s
}

func (s *Scene) WithTags(tags ...string) *Scene {
	s.Tags = append([]string(nil), tags...)
	return s
}

func (s *Scene) WithDescription(d string) *Scene {
	s.Description = d
	return s
}

// HasTag reports whether the scene carries tag (case-insensitive)
func (s *Scene) HasTag(tag string) bool {
	return slices.ContainsFunc(s.Tags, func(t string) bool {
		return strings.EqualFold(t, tag)
	})
}

// Clone returns a deep copy. The engine works on clones so later edits
// never reach in-flight transitions.
func (s *Scene) Clone() *Scene {
	if s == nil {
		return nil
	}
	c := *s
	c.Values = maps.Clone(s.Values)
	if c.Values == nil {
		c.Values = make(map[string]ParameterValue)
	}
	c.Tags = slices.Clone(s.Tags)
	if s.GridPosition != nil {
		pos := *s.GridPosition
		c.GridPosition = &pos
	}
	if s.Color != nil {
		col := *s.Color
		c.Color = &col
	}
	return &c
}

// Duplicate copies the scene under a new id and name. The copy is not
// placed on the grid.
func (s *Scene) Duplicate(id, name string) *Scene {
	c := s.Clone()
	c.ID = id
	c.Name = name
	c.GridPosition = nil
	return c
}

// rekey rebuilds Values under "channel:number" keys. An entry that leaves
// channel and number at zero takes them from its map key. When several
// entries land on one key, the entry stored under that exact key wins,
// otherwise the first in key order.
func (s *Scene) rekey() {
	keys := make([]string, 0, len(s.Values))
	for k := range s.Values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make(map[string]ParameterValue, len(keys))
	exact := make(map[string]bool, len(keys))
	for _, k := range keys {
		p := s.Values[k]
		if ch, n, ok := ParseKey(k); ok && p.Channel == 0 && p.Number == 0 {
			p.Channel, p.Number = ch, n
		}
		p = p.Clamped()
		ck := p.Key()
		if _, dup := out[ck]; dup && (exact[ck] || k != ck) {
			continue
		}
		out[ck] = p
		exact[ck] = k == ck
	}
	s.Values = out
}

// ParseKey splits a "channel:number" key
func ParseKey(k string) (channel, number int, ok bool) {
	a, b, found := strings.Cut(k, ":")
	if !found {
		return 0, 0, false
	}
	ch, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, false
	}
	n, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, false
	}
	return ch, n, true
}
