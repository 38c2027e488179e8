package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

type SubmissionKind string

const (
	KindInterest    SubmissionKind = "interest"
	KindDataRequest SubmissionKind = "data_request"
)

type SubmissionStatus string

const (
	SubmissionReceived  SubmissionStatus = "received"
	SubmissionForwarded SubmissionStatus = "forwarded"
	SubmissionFailed    SubmissionStatus = "failed"
)

// Submission is a stored form entry awaiting or past forwarding.
type Submission struct {
	ID        string           `json:"id"`
	Kind      SubmissionKind   `json:"kind"`
	Email     string           `json:"email"`
	Payload   json.RawMessage  `json:"payload"`
	Status    SubmissionStatus `json:"status"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var (
	ModalityOptions = []Option{
		{ID: "rgb", Label: "RGB video"},
		{ID: "imu", Label: "IMU"},
		{ID: "force", Label: "Force/Tactile"},
		{ID: "audio", Label: "Audio"},
		{ID: "depth", Label: "Depth"},
	}
	TimeframeOptions = []Option{
		{ID: "asap", Label: "ASAP"},
		{ID: "1-2months", Label: "1–2 months"},
		{ID: "3-6months", Label: "3–6 months"},
		{ID: "6plus", Label: ">6 months"},
	}
	BudgetOptions = []Option{
		{ID: "under5k", Label: "< $5k"},
		{ID: "5-25k", Label: "$5–25k"},
		{ID: "25-100k", Label: "$25–100k"},
		{ID: "over100k", Label: "> $100k"},
		{ID: "unsure", Label: "Not sure yet"},
	}
)

func hasOption(options []Option, id string) bool {
	return slices.ContainsFunc(options, func(o Option) bool { return o.ID == id })
}

type InterestForm struct {
	FullName     string   `json:"fullName"`
	Email        string   `json:"email"`
	Company      string   `json:"company"`
	Role         string   `json:"role"`
	Tasks        string   `json:"tasks"`
	Modalities   []string `json:"modalities"`
	Timeframe    string   `json:"timeframe"`
	Budget       string   `json:"budget"`
	ExtraContext string   `json:"extraContext,omitempty"`
}

// Validate trims the form in place and reports the first failed rule.
func (f *InterestForm) Validate() error {
	f.FullName = strings.TrimSpace(f.FullName)
	f.Email = strings.TrimSpace(f.Email)
	f.Company = strings.TrimSpace(f.Company)
	f.Role = strings.TrimSpace(f.Role)
	f.Tasks = strings.TrimSpace(f.Tasks)
	f.ExtraContext = strings.TrimSpace(f.ExtraContext)

	const op = "validate interest form"
	if f.FullName == "" || f.Email == "" || f.Company == "" || f.Role == "" || f.Tasks == "" {
		return WrapError(ErrInvalidInput, op, errors.New("please fill in all required fields"))
	}
	if !strings.Contains(f.Email, "@") {
		return WrapError(ErrInvalidInput, op, errors.New("please enter a valid email address"))
	}
	if len(f.Modalities) == 0 {
		return WrapError(ErrInvalidInput, op, errors.New("please select at least one modality"))
	}
	for _, m := range f.Modalities {
		if !hasOption(ModalityOptions, m) {
			return WrapError(ErrInvalidInput, op, fmt.Errorf("unknown modality %q", m))
		}
	}
	if f.Timeframe == "" || f.Budget == "" {
		return WrapError(ErrInvalidInput, op, errors.New("please select timeframe and budget"))
	}
	if !hasOption(TimeframeOptions, f.Timeframe) {
		return WrapError(ErrInvalidInput, op, fmt.Errorf("unknown timeframe %q", f.Timeframe))
	}
	if !hasOption(BudgetOptions, f.Budget) {
		return WrapError(ErrInvalidInput, op, fmt.Errorf("unknown budget %q", f.Budget))
	}
	return nil
}

type DataRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Company   string `json:"company"`
	DataNeeds string `json:"dataNeeds"`
}

func (d *DataRequest) Validate() error {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.TrimSpace(d.Email)
	d.Company = strings.TrimSpace(d.Company)
	d.DataNeeds = strings.TrimSpace(d.DataNeeds)

	const op = "validate data request"
	if d.Name == "" || d.Email == "" || d.Company == "" || d.DataNeeds == "" {
		return WrapError(ErrInvalidInput, op, errors.New("please fill in all required fields"))
	}
	if !strings.Contains(d.Email, "@") {
		return WrapError(ErrInvalidInput, op, errors.New("please enter a valid email address"))
	}
	return nil
}

// Subject is the mail subject the form relay shows for this request.
func (d DataRequest) Subject() string {
	return fmt.Sprintf("Data Request from %s (%s)", d.Name, d.Company)
}

func (f InterestForm) Subject() string {
	return fmt.Sprintf("Interest from %s (%s)", f.FullName, f.Company)
}
