package scene

import (
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Definition describes a controllable parameter of the target device
type Definition struct {
	Channel        int    `json:"channel" yaml:"channel"`
	Number         int    `json:"number" yaml:"number"`
	Name           string `json:"name" yaml:"name"`
	Description    string `json:"description,omitempty" yaml:"description,omitempty"`
	Min            int    `json:"min" yaml:"min"`
	Max            int    `json:"max" yaml:"max"`
	Default        int    `json:"default" yaml:"default"`
	UseTransitions bool   `json:"useTransitions,omitempty" yaml:"useTransitions,omitempty"`
}

func NewDefinition(channel, number int, name string) Definition {
	return Definition{
		Channel: ClampChannel(channel),
		Number:  ClampData(number),
		Name:    name,
		Max:     MaxData,
	}
}

func (d Definition) Key() string {
	return Key(d.Channel, d.Number)
}

// NewParameter builds a value from this definition. A negative value
// selects the definition's default.
func (d Definition) NewParameter(value int) ParameterValue {
	if value < 0 {
		value = d.Default
	}
	if d.Max > d.Min {
		value = clamp(value, d.Min, d.Max)
	}
	p := NewParameter(d.Channel, d.Number, value)
	p.Name = d.Name
	p.Description = d.Description
	p.Transition = d.UseTransitions
	return p
}

// Settings are per-project defaults
type Settings struct {
	DefaultOutput     string  `json:"defaultOutput,omitempty" yaml:"defaultOutput,omitempty"`
	DefaultController string  `json:"defaultController,omitempty" yaml:"defaultController,omitempty"`
	AutoConnect       bool    `json:"autoConnect" yaml:"autoConnect"`
	DefaultTempo      float64 `json:"defaultTempo" yaml:"defaultTempo"`
	UseLink           bool    `json:"useLink" yaml:"useLink"`
	Quantize          uint8   `json:"quantize,omitempty" yaml:"quantize,omitempty"`
}

// Project holds scenes, CC definitions and the launch grid
type Project struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Author      string    `json:"author,omitempty" yaml:"author,omitempty"`
	Version     string    `json:"version" yaml:"version"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
	Settings    Settings  `json:"settings" yaml:"settings"`

	Definitions map[string]Definition `json:"definitions" yaml:"definitions"`
	Scenes      map[string]*Scene     `json:"scenes" yaml:"scenes"`
	Grid        map[int]string        `json:"grid" yaml:"grid"` // position -> scene id
}

func NewProject(name, author string) *Project {
	now := time.Now().UTC()
	return &Project{
		ID:          uuid.NewString(),
		Name:        name,
		Author:      author,
		Version:     "1.0.0",
		CreatedAt:   now,
		UpdatedAt:   now,
		Settings:    Settings{DefaultTempo: 120},
		Definitions: make(map[string]Definition),
		Scenes:      make(map[string]*Scene),
		Grid:        make(map[int]string),
	}
}

// ensureMaps fills nil maps left by a sparse project file
func (p *Project) ensureMaps() {
	if p.Definitions == nil {
		p.Definitions = make(map[string]Definition)
	}
	if p.Scenes == nil {
		p.Scenes = make(map[string]*Scene)
	}
	if p.Grid == nil {
		p.Grid = make(map[int]string)
	}
}

// Normalize repairs a freshly decoded project: nil maps, missing scene ids,
// values stored under the wrong key, and grid entries pointing at missing
// scenes
func (p *Project) Normalize() {
	p.ensureMaps()
	if p.Settings.DefaultTempo <= 0 {
		p.Settings.DefaultTempo = 120
	}
	for id, s := range p.Scenes {
		if s == nil {
			delete(p.Scenes, id)
			continue
		}
		if s.ID == "" {
			s.ID = id
		}
		s.rekey()
	}
	for pos, id := range p.Grid {
		s, ok := p.Scenes[id]
		if !ok || pos < 0 || pos >= GridSize {
			delete(p.Grid, pos)
			continue
		}
		gp := pos
		s.GridPosition = &gp
	}
}

func (p *Project) AddDefinition(d Definition) *Project {
	p.ensureMaps()
	p.Definitions[d.Key()] = d
	return p
}

func (p *Project) Definition(channel, number int) (Definition, bool) {
	d, ok := p.Definitions[Key(channel, number)]
	return d, ok
}

func (p *Project) AddScene(s *Scene) *Project {
	p.ensureMaps()
	p.Scenes[s.ID] = s
	return p
}

// NewScene creates an empty scene with a fresh id and adds it
func (p *Project) NewScene(name string) *Scene {
	s := New(uuid.NewString(), name)
	p.AddScene(s)
	return s
}

func (p *Project) Scene(id string) (*Scene, bool) {
	s, ok := p.Scenes[id]
	return s, ok
}

// RemoveScene deletes the scene and any grid assignment pointing at it
func (p *Project) RemoveScene(id string) (*Scene, bool) {
	s, ok := p.Scenes[id]
	if !ok {
		return nil, false
	}
	for pos, sid := range p.Grid {
		if sid == id {
			delete(p.Grid, pos)
		}
	}
	delete(p.Scenes, id)
	return s, true
}

// AssignToGrid places a scene on a pad, replacing whatever was there
func (p *Project) AssignToGrid(sceneID string, pos int) error {
	if pos < 0 || pos >= GridSize {
		return fmt.Errorf("%w: %d", ErrInvalidGridPosition, pos)
	}
	s, ok := p.Scenes[sceneID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSceneNotFound, sceneID)
	}
	p.ensureMaps()
	if prev, ok := p.Grid[pos]; ok && prev != sceneID {
		if old, ok := p.Scenes[prev]; ok {
			old.GridPosition = nil
		}
	}
	if s.GridPosition != nil && *s.GridPosition != pos {
		delete(p.Grid, *s.GridPosition)
	}
	s.SetGridPosition(pos, nil)
	p.Grid[pos] = sceneID
	return nil
}

// SceneAtGrid returns the scene on a pad, if any
func (p *Project) SceneAtGrid(pos int) (*Scene, bool) {
	if pos < 0 || pos >= GridSize {
		return nil, false
	}
	id, ok := p.Grid[pos]
	if !ok {
		return nil, false
	}
	s, ok := p.Scenes[id]
	return s, ok
}

// SceneList returns all scenes sorted by name, then id
func (p *Project) SceneList() []*Scene {
	out := make([]*Scene, 0, len(p.Scenes))
	for _, s := range p.Scenes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ScenesWithTag returns the scenes carrying tag, in SceneList order.
// An empty tag matches every scene.
func (p *Project) ScenesWithTag(tag string) []*Scene {
	all := p.SceneList()
	if tag == "" {
		return all
	}
	out := all[:0]
	for _, s := range all {
		if s.HasTag(tag) {
			out = append(out, s)
		}
	}
	return out
}

// FindScene looks a scene up by id first, then by case-sensitive name
func (p *Project) FindScene(ref string) (*Scene, bool) {
	if s, ok := p.Scenes[ref]; ok {
		return s, true
	}
	for _, s := range p.SceneList() {
		if s.Name == ref {
			return s, true
		}
	}
	return nil, false
}

func (p *Project) Touch() {
	p.UpdatedAt = time.Now().UTC()
}

// Duplicate copies the whole project under a new id and name
func (p *Project) Duplicate(name string) *Project {
	c := *p
	c.ID = uuid.NewString()
	c.Name = name
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	c.Definitions = maps.Clone(p.Definitions)
	c.Grid = maps.Clone(p.Grid)
	c.Scenes = make(map[string]*Scene, len(p.Scenes))
	for id, s := range p.Scenes {
		c.Scenes[id] = s.Clone()
	}
	c.ensureMaps()
	return &c
}
