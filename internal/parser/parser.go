package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/killcam/internal/damage"
	"github.com/OCAP2/killcam/internal/host"
	"github.com/OCAP2/killcam/internal/util"
	"github.com/OCAP2/killcam/pkg/core"
)

// ErrTooFewArguments is returned when a command carries fewer args than required.
var ErrTooFewArguments = errors.New("too few arguments")

// ErrNotFinite is returned for NaN or infinite scalars.
var ErrNotFinite = errors.New("value is not finite")

// Hit is a direct raycast hit reported by the host.
type Hit struct {
	Time       float64
	Target     core.EntityRef
	Point      core.Vec3
	Collider   string
	Tag        string
	BaseDamage float64
	Components []damage.ComponentSnapshot
}

// Parser provides pure []string -> value conversion for host commands.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// fix strips the host's quoting from every argument in place.
func fix(data []string) {
	util.CleanArgs(data)
}

func need(data []string, n int, command string) error {
	if len(data) < n {
		return fmt.Errorf("%s: %w: got %d, need %d", command, ErrTooFewArguments, len(data), n)
	}
	return nil
}

// ParseSceneLoad returns the scene name of a scene load command.
func (p *Parser) ParseSceneLoad(data []string) (string, error) {
	if err := need(data, 1, "scene load"); err != nil {
		return "", err
	}
	fix(data)
	return strings.TrimSpace(data[0]), nil
}

// ParseFrame parses a frame command:
// [unscaledTime, timeScale, firePressed, aimHeld, camPos, camForward, characters, playerId?]
// An empty camPos means the host has no camera this frame.
func (p *Parser) ParseFrame(data []string) (host.Frame, error) {
	var f host.Frame
	if err := need(data, 7, "frame"); err != nil {
		return f, err
	}
	fix(data)

	var err error
	if f.Now, err = parseFinite(data[0]); err != nil {
		return f, fmt.Errorf("error parsing frame time: %w", err)
	}
	if f.TimeScale, err = parseFinite(data[1]); err != nil {
		return f, fmt.Errorf("error parsing time scale: %w", err)
	}
	if f.FirePressed, err = parseBool(data[2]); err != nil {
		return f, fmt.Errorf("error parsing fire input: %w", err)
	}
	if f.AimHeld, err = parseBool(data[3]); err != nil {
		return f, fmt.Errorf("error parsing aim input: %w", err)
	}

	if data[4] != "" && data[4] != "[]" {
		if f.CameraPos, err = ParseVec3(data[4]); err != nil {
			return f, fmt.Errorf("error parsing camera position: %w", err)
		}
		if f.CameraForward, err = ParseVec3(data[5]); err != nil {
			return f, fmt.Errorf("error parsing camera forward: %w", err)
		}
		f.HasCamera = true
	}

	if f.Entities, err = ParseEntities(data[6]); err != nil {
		return f, err
	}

	if len(data) > 7 {
		f.PlayerID = core.EntityRef(data[7])
	}
	return f, nil
}

// ParseHit parses a hit command:
// [unscaledTime, targetId, hitPoint, colliderName, colliderTag, baseDamage, components?]
func (p *Parser) ParseHit(data []string) (Hit, error) {
	var h Hit
	if err := need(data, 6, "hit"); err != nil {
		return h, err
	}
	fix(data)

	var err error
	if h.Time, err = parseFinite(data[0]); err != nil {
		return h, fmt.Errorf("error parsing hit time: %w", err)
	}
	h.Target = core.EntityRef(data[1])
	if h.Point, err = ParseVec3(data[2]); err != nil {
		return h, fmt.Errorf("error parsing hit point: %w", err)
	}
	h.Collider = data[3]
	h.Tag = data[4]
	if h.BaseDamage, err = parseFinite(data[5]); err != nil {
		return h, fmt.Errorf("error parsing base damage: %w", err)
	}

	if len(data) > 6 {
		if h.Components, err = damage.ParseSnapshots([]byte(data[6])); err != nil {
			return h, err
		}
	}

	p.logger.Debug("Parsed hit",
		"target", h.Target,
		"collider", h.Collider,
		"baseDamage", h.BaseDamage,
		"components", len(h.Components))
	return h, nil
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotFinite, s)
	}
	return v, nil
}

// ParseVec3 parses "[x,y,z]".
func ParseVec3(s string) (core.Vec3, error) {
	var arr []float64
	if err := json.Unmarshal([]byte(s), &arr); err != nil {
		return core.Vec3{}, fmt.Errorf("%w: %q", core.ErrInvalidVector, s)
	}
	if len(arr) != 3 {
		return core.Vec3{}, fmt.Errorf("%w: %q has %d components", core.ErrInvalidVector, s, len(arr))
	}
	v := core.Vec3{arr[0], arr[1], arr[2]}
	if !core.IsFinite(v) {
		return core.Vec3{}, fmt.Errorf("%w: %q", core.ErrInvalidVector, s)
	}
	return v, nil
}

// ParseEntities parses [[id,typeName,name,[x,y,z],valid],...]. Ids may be
// numbers or strings.
func ParseEntities(s string) ([]core.Entity, error) {
	if s == "" {
		return nil, nil
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal([]byte(s), &rows); err != nil {
		return nil, fmt.Errorf("error unmarshalling characters: %w", err)
	}

	out := make([]core.Entity, 0, len(rows))
	for i, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("character %d: %w", i, ErrTooFewArguments)
		}

		var e core.Entity
		e.Ref = core.EntityRef(rawID(row[0]))
		if err := json.Unmarshal(row[1], &e.TypeName); err != nil {
			return nil, fmt.Errorf("character %d type: %w", i, err)
		}
		if err := json.Unmarshal(row[2], &e.Name); err != nil {
			return nil, fmt.Errorf("character %d name: %w", i, err)
		}
		pos, err := ParseVec3(string(row[3]))
		if err != nil {
			return nil, fmt.Errorf("character %d position: %w", i, err)
		}
		e.Position = pos
		if err := json.Unmarshal(row[4], &e.Valid); err != nil {
			return nil, fmt.Errorf("character %d valid flag: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// parseBool accepts true/false and the numeric 1/0 the host sends.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true":
		return true, nil
	case "0", "false", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool %q", s)
}
