package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/carepoint/portal/internal/platform/clock"
)

// Step names a page of the profile wizard.
type Step string

const (
	StepPersonal  Step = "personal"
	StepMedical   Step = "medical"
	StepEmergency Step = "emergency"
)

// Steps is the wizard order.
var Steps = []Step{StepPersonal, StepMedical, StepEmergency}

func (s Step) index() int {
	for i, st := range Steps {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Step) Valid() bool { return s.index() >= 0 }

type Personal struct {
	FullName    string `json:"fullName"`
	DateOfBirth string `json:"dateOfBirth"`
	Gender      string `json:"gender"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
}

var validGenders = map[string]bool{
	"": true, "male": true, "female": true, "other": true, "prefer_not_to_say": true,
}

func (p *Personal) validate(today time.Time) error {
	if strings.TrimSpace(p.FullName) == "" {
		return fmt.Errorf("fullName is required")
	}
	if strings.TrimSpace(p.Phone) == "" {
		return fmt.Errorf("phone is required")
	}
	if err := clock.ValidateDate("dateOfBirth", p.DateOfBirth); err != nil {
		return err
	}
	if p.DateOfBirth > clock.Date(today) {
		return fmt.Errorf("dateOfBirth must not be in the future")
	}
	if !validGenders[p.Gender] {
		return fmt.Errorf("invalid gender: %s", p.Gender)
	}
	return nil
}

type Medical struct {
	BloodType   string   `json:"bloodType"`
	Allergies   []string `json:"allergies"`
	Conditions  []string `json:"conditions"`
	Medications []string `json:"medications"`
}

var validBloodTypes = map[string]bool{
	"": true, "A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

func (m *Medical) validate() error {
	if !validBloodTypes[m.BloodType] {
		return fmt.Errorf("invalid blood type: %s", m.BloodType)
	}
	return nil
}

type Emergency struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship"`
}

func (e *Emergency) validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("emergency contact name is required")
	}
	if strings.TrimSpace(e.Phone) == "" {
		return fmt.Errorf("emergency contact phone is required")
	}
	return nil
}

// Profile is a user's wizard state. Sections are nil until their step has
// been submitted.
type Profile struct {
	UserID      string     `json:"userId"`
	Step        Step       `json:"step"`
	Personal    *Personal  `json:"personal,omitempty"`
	Medical     *Medical   `json:"medical,omitempty"`
	Emergency   *Emergency `json:"emergency,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Completed reports whether the wizard has been finished.
func (p *Profile) Completed() bool { return p.CompletedAt != nil }

// Missing lists the steps whose section has not been submitted.
func (p *Profile) Missing() []Step {
	var out []Step
	if p.Personal == nil {
		out = append(out, StepPersonal)
	}
	if p.Medical == nil {
		out = append(out, StepMedical)
	}
	if p.Emergency == nil {
		out = append(out, StepEmergency)
	}
	return out
}
