package registry

import (
	"strings"

	"github.com/joseph-ayodele/certificate-verifier/internal/verify"
)

// Record is one certificate held by the university.
type Record struct {
	ID                 string `json:"id"`
	StudentName        string `json:"student_name"`
	EnrollmentNumber   string `json:"enrollment_number"`
	RegistrationNumber string `json:"registration_number,omitempty"`
	Degree             string `json:"degree"`
	Branch             string `json:"branch"`
	University         string `json:"university,omitempty"`
	GraduationDate     string `json:"graduation_date"`
	CGPA               string `json:"cgpa"`
	AcademicYear       string `json:"academic_year"`
	CertificateType    string `json:"certificate_type,omitempty"`
	IssueDate          string `json:"issue_date,omitempty"`
	CertificateNumber  string `json:"certificate_number"`
	Status             string `json:"status"`
	UploadTimestamp    string `json:"upload_timestamp,omitempty"`
}

// Student projects the record onto the verification wire shape.
func (r Record) Student() *verify.Student {
	return &verify.Student{
		StudentName:       r.StudentName,
		EnrollmentNumber:  r.EnrollmentNumber,
		Degree:            r.Degree,
		Branch:            r.Branch,
		GraduationDate:    r.GraduationDate,
		CGPA:              r.CGPA,
		CertificateNumber: r.CertificateNumber,
		Status:            r.Status,
		AcademicYear:      r.AcademicYear,
	}
}

// Metadata describes the registry file.
type Metadata struct {
	UniversityName    string `json:"university_name,omitempty"`
	UniversityCode    string `json:"university_code,omitempty"`
	Location          string `json:"location,omitempty"`
	Website           string `json:"website,omitempty"`
	TotalCertificates int    `json:"total_certificates"`
	LastUpdated       string `json:"last_updated,omitempty"`
}

type database struct {
	Certificates []Record `json:"certificates"`
	Metadata     Metadata `json:"metadata"`
}

// AddRequest is the body of POST /api/certificates.
type AddRequest struct {
	StudentName      string `json:"student_name" validate:"required"`
	EnrollmentNumber string `json:"enrollment_number" validate:"required,alphanum"`
	Branch           string `json:"branch" validate:"required"`
	AcademicYear     string `json:"academic_year" validate:"required"`
	Status           string `json:"status" validate:"required"`
	CGPA             string `json:"cgpa"`
	Degree           string `json:"degree"`
}

func (r *AddRequest) trim() {
	r.StudentName = strings.TrimSpace(r.StudentName)
	r.EnrollmentNumber = strings.TrimSpace(r.EnrollmentNumber)
	r.Branch = strings.TrimSpace(r.Branch)
	r.AcademicYear = strings.TrimSpace(r.AcademicYear)
	r.Status = strings.TrimSpace(r.Status)
	r.CGPA = strings.TrimSpace(r.CGPA)
	r.Degree = strings.TrimSpace(r.Degree)
}

var branchCodes = map[string]string{
	"Computer Science Engineering":            "CSE",
	"Computer Science & Engineering":          "CSE",
	"Information Technology":                  "IT",
	"Electronics & Communication":             "ECE",
	"Electronics & Communication Engineering": "ECE",
	"Mechanical Engineering":                  "ME",
	"Civil Engineering":                       "CE",
	"Electrical Engineering":                  "EE",
}

func branchCode(branch string) string {
	if c, ok := branchCodes[branch]; ok {
		return c
	}
	return "GEN"
}

// Stats summarises the registry.
type Stats struct {
	TotalCertificates int            `json:"total_certificates"`
	Branches          map[string]int `json:"branches"`
	AcademicYears     map[string]int `json:"academic_years"`
	Degrees           map[string]int `json:"degrees"`
	LastUpdated       string         `json:"last_updated,omitempty"`
	UniversityInfo    map[string]any `json:"university_info"`
}
