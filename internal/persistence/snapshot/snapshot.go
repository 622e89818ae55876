// Package snapshot defines the versioned on-disk capture of a whole world:
// entities, pending intents and tasks (with their serialized action records),
// the clock, the id counter, and the RNG cursor. A resumed world replays
// identically to one that never stopped.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"wildern.gg/internal/sim/tuning"
)

const Version = 1

type Header struct {
	Version  int    `json:"version"`
	WorldID  string `json:"world_id"`
	GameDate int64  `json:"game_date"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed   int64         `json:"seed"`
	Tuning tuning.Tuning `json:"tuning"`

	NextID    int64 `json:"next_id"`
	RNGCursor int64 `json:"rng_cursor"`
	GameDate  int64 `json:"game_date"`

	Types  []EntityTypeV1 `json:"types"`
	Groups []TypeGroupV1  `json:"groups,omitempty"`

	Characters    []CharacterV1    `json:"characters,omitempty"`
	Items         []ItemV1         `json:"items,omitempty"`
	Locations     []LocationV1     `json:"locations,omitempty"`
	Deposits      []DepositV1      `json:"deposits,omitempty"`
	Activities    []ActivityV1     `json:"activities,omitempty"`
	Combats       []CombatV1       `json:"combats,omitempty"`
	Intents       []IntentV1       `json:"intents,omitempty"`
	Tasks         []TaskV1         `json:"tasks,omitempty"`
	Notifications []NotificationV1 `json:"notifications,omitempty"`
}

type EntityTypeV1 struct {
	Name       string  `json:"name"`
	Stackable  bool    `json:"stackable,omitempty"`
	UnitWeight float64 `json:"unit_weight,omitempty"`
	Portable   bool    `json:"portable,omitempty"`
	Lifetime   int64   `json:"lifetime,omitempty"`
}

type TypeGroupV1 struct {
	Name    string          `json:"name"`
	Members []GroupMemberV1 `json:"members"`
}

type GroupMemberV1 struct {
	TypeName   string  `json:"type_name"`
	Efficiency float64 `json:"efficiency"`
}

// EntityV1 is the shared placement base: parent edge plus role tag.
type EntityV1 struct {
	ID       int64  `json:"id"`
	TypeName string `json:"type_name"`
	Parent   int64  `json:"parent,omitempty"`
	Role     string `json:"role,omitempty"`
}

type CharacterV1 struct {
	EntityV1
	Skills          map[string]float64 `json:"skills,omitempty"`
	Damage          float64            `json:"damage,omitempty"`
	TravelTarget    int64              `json:"travel_target,omitempty"`
	TravelStepsLeft int                `json:"travel_steps_left,omitempty"`
}

type ItemV1 struct {
	EntityV1
	Amount  int     `json:"amount"`
	Quality float64 `json:"quality,omitempty"`
	Damage  float64 `json:"damage,omitempty"`
}

type LocationV1 struct {
	EntityV1
	Terrain string `json:"terrain,omitempty"`
}

type DepositV1 struct {
	EntityV1
	Resource string `json:"resource"`
	Amount   int    `json:"amount"`
}

type ActivityV1 struct {
	EntityV1
	Requirements  RequirementsV1 `json:"requirements"`
	TicksNeeded   float64        `json:"ticks_needed"`
	TicksLeft     float64        `json:"ticks_left"`
	QualitySum    float64        `json:"quality_sum,omitempty"`
	QualityTicks  int            `json:"quality_ticks,omitempty"`
	ResultActions []RecordV1     `json:"result_actions,omitempty"`
	Initiator     int64          `json:"initiator,omitempty"`
}

type RequirementsV1 struct {
	MandatoryMachines  []string               `json:"mandatory_machines,omitempty"`
	OptionalMachines   map[string]float64     `json:"optional_machines,omitempty"`
	Targets            []int64                `json:"targets,omitempty"`
	RequiredResources  []string               `json:"required_resources,omitempty"`
	LocationTypes      []string               `json:"location_types,omitempty"`
	TerrainTypes       []string               `json:"terrain_types,omitempty"`
	ExcludedByEntities map[string]int         `json:"excluded_by_entities,omitempty"`
	Input              map[string]InputLineV1 `json:"input,omitempty"`
	MandatoryTools     []string               `json:"mandatory_tools,omitempty"`
	OptionalTools      map[string]float64     `json:"optional_tools,omitempty"`
	Skills             map[string]float64     `json:"skills,omitempty"`
	MinWorkers         int                    `json:"min_workers,omitempty"`
	MaxWorkers         int                    `json:"max_workers,omitempty"`
}

type InputLineV1 struct {
	Needed   float64 `json:"needed"`
	Left     float64 `json:"left"`
	UsedType string  `json:"used_type,omitempty"`
	Quality  float64 `json:"quality,omitempty"`
}

type CombatV1 struct {
	EntityV1
	RecordedViolence map[int64]float64 `json:"recorded_violence,omitempty"`
	TaskID           int64             `json:"task_id,omitempty"`
}

type IntentV1 struct {
	ID       int64    `json:"id"`
	Executor int64    `json:"executor"`
	Kind     string   `json:"kind"`
	Priority int      `json:"priority"`
	Target   int64    `json:"target,omitempty"`
	Action   RecordV1 `json:"action"`
}

type TaskV1 struct {
	ID        int64    `json:"id"`
	Process   RecordV1 `json:"process"`
	ExecuteAt int64    `json:"execute_at"`
	Interval  int64    `json:"interval,omitempty"`
}

type NotificationV1 struct {
	ID          int64          `json:"id"`
	TitleTag    string         `json:"title_tag"`
	TitleParams map[string]any `json:"title_params,omitempty"`
	TextTag     string         `json:"text_tag"`
	TextParams  map[string]any `json:"text_params,omitempty"`
	Count       int            `json:"count"`
	Recipient   int64          `json:"recipient"`
	GameDate    int64          `json:"game_date"`
}

// RecordV1 is a serialized action: stable type id plus declared args.
type RecordV1 struct {
	Type string         `json:"type"`
	Args map[string]any `json:"args"`
}

// WriteFile writes the snapshot atomically: a JSON header line followed by
// the JSON body, zstd compressed, renamed into place only when fully flushed.
func WriteFile(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	err = func() error {
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		bw := bufio.NewWriterSize(enc, 256*1024)

		hb, _ := json.Marshal(snap.Header)
		if _, err := bw.Write(hb); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
		if err := json.NewEncoder(bw).Encode(&snap); err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		if err := bw.Flush(); err != nil {
			return err
		}
		return enc.Close()
	}()
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func ReadFile(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var hdr Header
	if err := json.Unmarshal(line, &hdr); err != nil {
		return snap, fmt.Errorf("decode header: %w", err)
	}
	if hdr.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", hdr.Version)
	}

	if err := json.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Latest returns the newest snapshot file in dir by name ("" when none).
// File names embed the zero-padded game date, so lexical order is age order.
func Latest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".zst") {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}

// FileName builds the canonical snapshot name for a game date.
func FileName(gameDate int64) string {
	return fmt.Sprintf("snap-%012d.zst", gameDate)
}
