package domain

import (
	"strings"
	"time"
)

// DocumentType is the declared kind of an attached document.
type DocumentType string

const (
	DocInvoice        DocumentType = "Invoice"
	DocReceipt        DocumentType = "Receipt"
	DocMedicalReport  DocumentType = "MedicalReport"
	DocPolicyDocument DocumentType = "PolicyDocument"
	DocIdentityProof  DocumentType = "IdentityProof"
	DocOther          DocumentType = "Other"
)

var documentTypes = []DocumentType{
	DocInvoice, DocReceipt, DocMedicalReport, DocPolicyDocument, DocIdentityProof, DocOther,
}

// ParseDocumentType matches case-insensitively. Unknown names map to Other.
func ParseDocumentType(s string) DocumentType {
	for _, t := range documentTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t
		}
	}
	return DocOther
}

// OCRStatus tracks the analysis outcome of one document.
type OCRStatus string

const (
	OCRPending   OCRStatus = "Pending"
	OCRCompleted OCRStatus = "Completed"
	OCRFailed    OCRStatus = "Failed"
)

// Document is evidence attached to a claim.
// ExtractedText is non-nil exactly when OCRStatus is Completed.
type Document struct {
	ID             string       `json:"id"`
	ClaimID        string       `json:"claimId"`
	Type           DocumentType `json:"documentType"`
	Locator        string       `json:"locator"`
	UploadedAt     time.Time    `json:"uploadedAt"`
	OCRStatus      OCRStatus    `json:"ocrStatus"`
	OCRConfidence  *float64     `json:"ocrConfidence,omitempty"`
	ExtractedText  *string      `json:"extractedText,omitempty"`
	ClassifiedType *string      `json:"classifiedType,omitempty"`
}

// NewDocument builds a Pending document for a claim.
func NewDocument(id, claimID string, typ DocumentType, locator string, now time.Time) *Document {
	return &Document{
		ID:         id,
		ClaimID:    claimID,
		Type:       typ,
		Locator:    locator,
		UploadedAt: now.UTC(),
		OCRStatus:  OCRPending,
	}
}

// BeginAnalysis resets the document for a new attempt.
func (d *Document) BeginAnalysis() {
	d.OCRStatus = OCRPending
	d.OCRConfidence = nil
	d.ExtractedText = nil
	d.ClassifiedType = nil
}

// CompleteOCR records a successful extraction. Confidence is clamped to [0,1].
func (d *Document) CompleteOCR(text string, confidence float64) {
	confidence = min(max(confidence, 0), 1)
	d.OCRStatus = OCRCompleted
	d.ExtractedText = &text
	d.OCRConfidence = &confidence
}

// FailOCR records a failed extraction.
func (d *Document) FailOCR() {
	d.OCRStatus = OCRFailed
	d.ExtractedText = nil
	d.OCRConfidence = nil
}

// Classify stores the classifier label. Empty labels are ignored.
func (d *Document) Classify(label string) {
	if label == "" {
		return
	}
	d.ClassifiedType = &label
}

// Text returns the extracted text, or "" when none is present.
func (d *Document) Text() string {
	if d.ExtractedText == nil {
		return ""
	}
	return *d.ExtractedText
}
