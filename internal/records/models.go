package records

import (
	"strings"
	"time"
)

// Status represents the processing lifecycle of a URL record.
type Status string

const (
	StatusNotStarted        Status = "not_started"
	StatusLookingUp         Status = "looking_up"
	StatusScanning          Status = "scanning"
	StatusExtracting        Status = "extracting"
	StatusAwaitingSelection Status = "awaiting_selection"
	StatusAwaitingMetadata  Status = "awaiting_metadata"
	StatusStored            Status = "stored"
	StatusStoredIncomplete  Status = "stored_incomplete"
	StatusStoredCustom      Status = "stored_custom"
	StatusExhausted         Status = "exhausted"
	StatusIgnored           Status = "ignored"
	StatusArchived          Status = "archived"
)

var allStatuses = []Status{
	StatusNotStarted,
	StatusLookingUp,
	StatusScanning,
	StatusExtracting,
	StatusAwaitingSelection,
	StatusAwaitingMetadata,
	StatusStored,
	StatusStoredIncomplete,
	StatusStoredCustom,
	StatusExhausted,
	StatusIgnored,
	StatusArchived,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusLookingUp:  {},
	StatusScanning:   {},
	StatusExtracting: {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsStoredStatus reports whether a status means an external item is linked.
func IsStoredStatus(status Status) bool {
	switch status {
	case StatusStored, StatusStoredIncomplete, StatusStoredCustom:
		return true
	default:
		return false
	}
}

// Intent captures the user's processing preference for a URL. It is
// orthogonal to Status and gates whether automated processing may run at all.
type Intent string

const (
	IntentAuto       Intent = "auto"
	IntentIgnore     Intent = "ignore"
	IntentPriority   Intent = "priority"
	IntentManualOnly Intent = "manual_only"
	IntentArchive    Intent = "archive"
)

var intentSet = map[Intent]struct{}{
	IntentAuto:       {},
	IntentIgnore:     {},
	IntentPriority:   {},
	IntentManualOnly: {},
	IntentArchive:    {},
}

// ParseIntent converts a string into a known Intent.
func ParseIntent(value string) (Intent, bool) {
	normalized := Intent(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := intentSet[normalized]
	return normalized, ok
}

// BlocksProcessing reports whether the intent forbids automated processing.
func (i Intent) BlocksProcessing() bool {
	switch i {
	case IntentIgnore, IntentArchive, IntentManualOnly:
		return true
	default:
		return false
	}
}

// Record is a bibliographic URL persisted in SQLite.
type Record struct {
	ID             int64
	URL            string
	Title          string
	Status         Status
	Intent         Intent
	ItemKey        string
	ItemCreatedBy  bool
	ItemModified   bool
	DOI            string
	ArXivID        string
	PMID           string
	ISBN           string
	ContentPath    string
	ContentType    string
	Unreachable    bool
	ErrorMessage   string
	ErrorCategory  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Attempt is one append-only processing history entry for a URL record.
type Attempt struct {
	ID            int64
	URLID         int64
	Seq           int64
	Stage         string
	Method        string
	Success       bool
	ErrorMessage  string
	ErrorCategory string
	ItemKey       string
	Duration      time.Duration
	Metadata      map[string]string
	CreatedAt     time.Time
}

// AuditStage is the stage label recorded when history is explicitly cleared.
const AuditStage = "history_cleared"

// Capability describes which processing inputs are currently available for a
// record. It is derived on read and never persisted.
type Capability struct {
	HasIdentifier      bool
	HasDirectLookup    bool
	HasContent         bool
	Reachable          bool
	SupportsExtraction bool
	IsBinary           bool
}

// SupportsAutomation reports whether at least one automated method applies.
func (c Capability) SupportsAutomation() bool {
	return c.HasIdentifier || c.HasDirectLookup || c.HasContent || c.SupportsExtraction
}

// CapabilityFor derives the processing capability of a record.
// extractionEnabled reflects whether an extraction backend is configured.
func CapabilityFor(rec *Record, extractionEnabled bool) Capability {
	if rec == nil {
		return Capability{}
	}
	binary := isBinaryContentType(rec.ContentType)
	return Capability{
		HasIdentifier:      rec.DOI != "" || rec.ArXivID != "" || rec.PMID != "" || rec.ISBN != "",
		HasDirectLookup:    strings.TrimSpace(rec.URL) != "",
		HasContent:         rec.ContentPath != "",
		Reachable:          !rec.Unreachable,
		SupportsExtraction: extractionEnabled && !rec.Unreachable,
		IsBinary:           binary,
	}
}

func isBinaryContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case ct == "":
		return false
	case strings.Contains(ct, "pdf"),
		strings.Contains(ct, "octet-stream"),
		strings.HasPrefix(ct, "image/"),
		strings.HasPrefix(ct, "application/zip"):
		return true
	default:
		return false
	}
}
