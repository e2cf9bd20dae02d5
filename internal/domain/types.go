// Package domain contains the core types shared across the clinical
// assistant: patient records, tool call protocol, summaries and the
// error taxonomy.
package domain

import (
	"fmt"
	"sort"
	"strings"
)

// PatientRecord is a single visit entry as stored in the search index.
// Records are immutable once ingested.
type PatientRecord struct {
	PatientName       string   `json:"patient_name"`
	DateOfVisit       string   `json:"date_of_visit"`
	PatientComplaint  string   `json:"patient_complaint"`
	Diagnosis         string   `json:"diagnosis"`
	DoctorNotes       string   `json:"doctor_notes"`
	DrugsPrescribed   []string `json:"drugs_prescribed"`
	PatientAgeAtVisit int      `json:"patient_age_at_visit"`
}

// Prescriptions returns the drugs prescribed during this visit, filtering
// the "None" sentinel used in the source data.
func (r PatientRecord) Prescriptions() []string {
	if len(r.DrugsPrescribed) == 0 {
		return nil
	}
	drugs := make([]string, 0, len(r.DrugsPrescribed))
	for _, d := range r.DrugsPrescribed {
		if d == "" || strings.EqualFold(d, "None") {
			continue
		}
		drugs = append(drugs, d)
	}
	return drugs
}

// PatientRecordSet holds all records for one patient identity, ordered by
// visit date ascending. It is derived on demand and never persisted.
type PatientRecordSet struct {
	PatientName  string          `json:"patient_name"`
	TotalRecords int             `json:"total_records"`
	Records      []PatientRecord `json:"records"`
}

// NewPatientRecordSet builds a record set for one patient identity,
// sorting records by visit date ascending. Visit dates are ISO-8601
// strings so lexical order matches chronological order.
func NewPatientRecordSet(name string, records []PatientRecord) *PatientRecordSet {
	sorted := make([]PatientRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DateOfVisit < sorted[j].DateOfVisit
	})
	return &PatientRecordSet{
		PatientName:  name,
		TotalRecords: len(sorted),
		Records:      sorted,
	}
}

// RecordsNewestFirst returns the records ordered by visit date descending.
func (s *PatientRecordSet) RecordsNewestFirst() []PatientRecord {
	out := make([]PatientRecord, len(s.Records))
	copy(out, s.Records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DateOfVisit > out[j].DateOfVisit
	})
	return out
}

// AgeRange returns the span of recorded ages, e.g. "42-45 years".
func (s *PatientRecordSet) AgeRange() string {
	minAge, maxAge := 0, 0
	seen := false
	for _, r := range s.Records {
		if r.PatientAgeAtVisit <= 0 {
			continue
		}
		if !seen {
			minAge, maxAge = r.PatientAgeAtVisit, r.PatientAgeAtVisit
			seen = true
			continue
		}
		if r.PatientAgeAtVisit < minAge {
			minAge = r.PatientAgeAtVisit
		}
		if r.PatientAgeAtVisit > maxAge {
			maxAge = r.PatientAgeAtVisit
		}
	}
	if !seen {
		return "Unknown"
	}
	if minAge == maxAge {
		return fmt.Sprintf("%d years", minAge)
	}
	return fmt.Sprintf("%d-%d years", minAge, maxAge)
}

// Severity grades an interaction finding.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// InteractionRule is a known adverse interaction between two drugs.
// Lookup is symmetric: (A,B) and (B,A) match the same rule.
type InteractionRule struct {
	DrugA       string   `json:"drug_a"`
	DrugB       string   `json:"drug_b"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// InteractionFinding reports one potential adverse interaction between a
// proposed and an existing medication.
type InteractionFinding struct {
	DrugA     string   `json:"drug_a"`
	DrugB     string   `json:"drug_b"`
	Severity  Severity `json:"severity"`
	Rationale string   `json:"rationale"`
}
