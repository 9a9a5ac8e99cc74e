package roster

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hackgods/opd-token-allocation/internal/allocation"
)

type Doctor struct {
	ID               string `yaml:"id,omitempty"`
	Name             string `yaml:"name"`
	Specialty        string `yaml:"specialty,omitempty"`
	WorkStart        string `yaml:"work_start"`
	WorkEnd          string `yaml:"work_end"`
	SlotMinutes      int    `yaml:"slot_minutes,omitempty"`
	SlotCapacity     int    `yaml:"slot_capacity,omitempty"`
	EmergencyPerSlot int    `yaml:"emergency_per_slot,omitempty"`
	EmergencyPerDay  int    `yaml:"emergency_per_day,omitempty"`
}

type Roster struct {
	Doctors []Doctor `yaml:"doctors"`
}

// Registrar is the part of the engine the roster needs.
type Registrar interface {
	RegisterDoctor(ctx context.Context, in allocation.RegisterDoctorInput) (*allocation.Doctor, error)
}

func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}

	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	return &r, nil
}

func (r *Roster) Save(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode roster: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write roster: %w", err)
	}
	return nil
}

// Inputs converts roster entries, filling slot length and capacity from the
// defaults when an entry leaves them out.
func (r *Roster) Inputs(defaultSlot time.Duration, defaultCapacity int) ([]allocation.RegisterDoctorInput, error) {
	out := make([]allocation.RegisterDoctorInput, 0, len(r.Doctors))
	for i, d := range r.Doctors {
		in := allocation.RegisterDoctorInput{
			Name:             d.Name,
			Specialty:        d.Specialty,
			WorkStart:        d.WorkStart,
			WorkEnd:          d.WorkEnd,
			SlotDuration:     defaultSlot,
			SlotCapacity:     defaultCapacity,
			EmergencyPerSlot: d.EmergencyPerSlot,
			EmergencyPerDay:  d.EmergencyPerDay,
		}
		if d.ID != "" {
			id, err := uuid.Parse(d.ID)
			if err != nil {
				return nil, fmt.Errorf("doctor %d (%s): invalid id: %w", i, d.Name, err)
			}
			in.ID = id
		}
		if d.SlotMinutes > 0 {
			in.SlotDuration = time.Duration(d.SlotMinutes) * time.Minute
		}
		if d.SlotCapacity > 0 {
			in.SlotCapacity = d.SlotCapacity
		}
		out = append(out, in)
	}
	return out, nil
}

// Register adds every roster doctor to the engine and returns how many were
// registered. It stops at the first failure.
func (r *Roster) Register(ctx context.Context, reg Registrar, defaultSlot time.Duration, defaultCapacity int) (int, error) {
	inputs, err := r.Inputs(defaultSlot, defaultCapacity)
	if err != nil {
		return 0, err
	}
	for i, in := range inputs {
		if _, err := reg.RegisterDoctor(ctx, in); err != nil {
			return i, fmt.Errorf("register %s: %w", in.Name, err)
		}
	}
	return len(inputs), nil
}
