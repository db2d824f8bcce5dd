package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Product is a game title in the catalog.
type Product struct {
	ProductID string `json:"id"`
	BigID     string `json:"externalId"`
	Name      string `json:"name"`
}

// PackageBranch is a named distribution target. Flights are reported as
// branches with IsFlight set and the flight's name.
type PackageBranch struct {
	Name                   string `json:"name"`
	CurrentDraftInstanceID string `json:"currentDraftInstanceID"`
	IsFlight               bool   `json:"-"`
	FlightID               string `json:"-"`
}

// Flight is a pre-release distribution channel of a product.
type Flight struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	GroupIDs []string `json:"groupIds"`
}

// PackageState is the processing state of a package. The service moves a
// package through PendingUpload, Uploaded, InProcessing and then to
// Processed or ProcessFailed.
type PackageState string

const (
	PackageStatePendingUpload PackageState = "PendingUpload"
	PackageStateUploaded      PackageState = "Uploaded"
	PackageStateInProcessing  PackageState = "InProcessing"
	PackageStateProcessed     PackageState = "Processed"
	PackageStateProcessFailed PackageState = "ProcessFailed"
	// PackageStateUnknown stands for any state this client does not know.
	PackageStateUnknown PackageState = "Unknown"
)

var packageStates = map[string]PackageState{
	"pendingupload": PackageStatePendingUpload,
	"uploaded":      PackageStateUploaded,
	"inprocessing":  PackageStateInProcessing,
	"processed":     PackageStateProcessed,
	"processfailed": PackageStateProcessFailed,
}

// ParsePackageState maps a wire value to a PackageState, case-insensitively.
func ParsePackageState(s string) PackageState {
	if state, ok := packageStates[strings.ToLower(strings.TrimSpace(s))]; ok {
		return state
	}
	return PackageStateUnknown
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *PackageState) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("package state: %w", err)
	}
	*s = ParsePackageState(raw)
	return nil
}

// Terminal reports whether the service will not change the state any more.
func (s PackageState) Terminal() bool {
	return s == PackageStateProcessed || s == PackageStateProcessFailed
}

// UploadInfo is the upload credential issued for a package.
type UploadInfo struct {
	XfusID       string `json:"xfusId"`
	Token        string `json:"xfusToken"`
	UploadDomain string `json:"xfusUploadDomain"`
	XfusTenant   string `json:"xfusTenant"`
}

// Package is a package resource.
type Package struct {
	ID            string       `json:"id"`
	State         PackageState `json:"state"`
	FileName      string       `json:"fileName"`
	FileSize      int64        `json:"fileSize"`
	UploadInfo    *UploadInfo  `json:"uploadInfo,omitempty"`
	StatusDetails string       `json:"statusDetails,omitempty"`
	ETag          string       `json:"eTag,omitempty"`
}

type createPackageRequest struct {
	ResourceType           string `json:"resourceType"`
	FileName               string `json:"fileName"`
	MarketGroupID          string `json:"marketGroupId"`
	CurrentDraftInstanceID string `json:"currentDraftInstanceId"`
}

// MarketGroupPackage lists the packages available to one market group.
type MarketGroupPackage struct {
	MarketGroupID string   `json:"marketGroupId"`
	Name          string   `json:"name"`
	Markets       []string `json:"markets,omitempty"`
	PackageIDs    []string `json:"packageIds"`
}

// PackageConfiguration assigns packages to market groups for one branch draft.
type PackageConfiguration struct {
	ID                  string               `json:"id"`
	ETag                string               `json:"@odata.etag,omitempty"`
	MarketGroupPackages []MarketGroupPackage `json:"marketGroupPackages"`
}

// MarketGroup returns the market group with the given id or name, or nil.
// Ids win over names.
func (c *PackageConfiguration) MarketGroup(idOrName string) *MarketGroupPackage {
	for i := range c.MarketGroupPackages {
		if c.MarketGroupPackages[i].MarketGroupID == idOrName {
			return &c.MarketGroupPackages[i]
		}
	}
	for i := range c.MarketGroupPackages {
		if strings.EqualFold(c.MarketGroupPackages[i].Name, idOrName) {
			return &c.MarketGroupPackages[i]
		}
	}
	return nil
}

// SubmissionTargetType selects what a submission publishes to.
type SubmissionTargetType string

const (
	SubmissionTargetFlight  SubmissionTargetType = "Flight"
	SubmissionTargetSandbox SubmissionTargetType = "Sandbox"
)

// PublishOptions are passed through to the service.
type PublishOptions struct {
	ReleaseTimeInUTC    string `json:"releaseTimeInUtc,omitempty"`
	IsManualPublish     bool   `json:"isManualPublish,omitempty"`
	CertificationNotes  string `json:"certificationNotes,omitempty"`
	IsAutoPromote       bool   `json:"isAutoPromote,omitempty"`
	IsMandatoryUpdate   bool   `json:"isMandatoryUpdate,omitempty"`
	MandatoryUpdateInfo string `json:"mandatoryUpdateInfo,omitempty"`
}

// SubmissionRequest publishes the current package set of a branch or flight.
// TargetID is the flight id or the sandbox name.
type SubmissionRequest struct {
	TargetType     SubmissionTargetType `json:"targetType"`
	TargetID       string               `json:"targetId"`
	BranchName     string               `json:"branchName,omitempty"`
	ResourceRefs   []ResourceRef        `json:"resourceReferences"`
	PublishOptions *PublishOptions      `json:"publishOptions,omitempty"`
}

// ResourceRef points a submission at a draft instance.
type ResourceRef struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
}

// SubmissionState is the publishing state of a submission.
type SubmissionState string

const (
	SubmissionStateNotStarted SubmissionState = "NotStarted"
	SubmissionStateInProgress SubmissionState = "InProgress"
	SubmissionStatePublished  SubmissionState = "Published"
	SubmissionStateFailed     SubmissionState = "Failed"
)

// Severity of a validation item. Only SeverityError blocks a submission.
type Severity string

const (
	SeverityInformational Severity = "Informational"
	SeverityWarning       Severity = "Warning"
	SeverityError         Severity = "Error"
)

// SubmissionValidationItem is a problem reported for a submission.
type SubmissionValidationItem struct {
	ErrorCode string   `json:"errorCode"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	Resource  string   `json:"resource"`
}

// Blocking reports whether the item fails the submission.
func (i SubmissionValidationItem) Blocking() bool {
	return strings.EqualFold(string(i.Severity), string(SeverityError))
}

func (i SubmissionValidationItem) String() string {
	s := fmt.Sprintf("[%s] %s", i.Severity, i.Message)
	if i.ErrorCode != "" {
		s += " (" + i.ErrorCode + ")"
	}
	if i.Resource != "" {
		s += " on " + i.Resource
	}
	return s
}

// Submission is a publish request tracked by the service.
type Submission struct {
	ID              string                     `json:"id"`
	State           SubmissionState            `json:"state"`
	Substate        string                     `json:"substate"`
	ValidationItems []SubmissionValidationItem `json:"validationItems,omitempty"`
}

// BlockingItems returns the validation items that fail the submission.
func (s *Submission) BlockingItems() []SubmissionValidationItem {
	var items []SubmissionValidationItem
	for _, item := range s.ValidationItems {
		if item.Blocking() {
			items = append(items, item)
		}
	}
	return items
}

type listResponse[T any] struct {
	Value []T `json:"value"`
}
