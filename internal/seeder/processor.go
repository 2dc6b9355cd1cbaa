// internal/seeder/processor.go
package seeder

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Section types attached to every document as metadata.
const (
	SectionOverview   = "overview"
	SectionPricing    = "pricing"
	SectionFaculty    = "faculty"
	SectionCurriculum = "curriculum"
)

const notAvailable = "N/A"

// CourseData is one scraped course record.
type CourseData struct {
	Course     CourseInfo     `json:"course"`
	Pricing    PricingInfo    `json:"pricing"`
	Cohort     CohortInfo     `json:"cohort"`
	Faculty    FacultyInfo    `json:"faculty"`
	Curriculum []CourseModule `json:"curriculum"`
	Metadata   SourceInfo     `json:"metadata"`
}

type CourseInfo struct {
	Title                 string `json:"title"`
	URL                   string `json:"url"`
	DurationWeeks         *int   `json:"duration_weeks"`
	FellowshipMonths      *int   `json:"fellowship_months"`
	LiveClassHours        *int   `json:"live_class_hours"`
	PlacementSupportYears *int   `json:"placement_support_years"`
	CertificationAwarded  string `json:"certification_awarded"`
}

type PricingInfo struct {
	Amount   *int   `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

type CohortInfo struct {
	ID        *int   `json:"id"`
	StartDate string `json:"start_date"`
	Status    string `json:"status"`
}

type FacultyInfo struct {
	Instructors []Person `json:"instructors"`
	Mentors     []Person `json:"mentors"`
}

type Person struct {
	Name        string `json:"name"`
	Designation string `json:"designation"`
	Company     string `json:"company"`
	ProfileURL  string `json:"profile_url,omitempty"`
}

type CourseModule struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type SourceInfo struct {
	SourceURL string `json:"source_url"`
	ScrapedAt string `json:"scraped_at"`
}

// Document is one logical section of a course ready for chunking.
type Document struct {
	Content  string
	Metadata map[string]string
}

// ContentProcessor turns course records into section documents
type ContentProcessor struct {
	multiWhitespace *regexp.Regexp
	blankLines      *regexp.Regexp
}

func NewContentProcessor() *ContentProcessor {
	return &ContentProcessor{
		multiWhitespace: regexp.MustCompile(`[ \t]+`),
		blankLines:      regexp.MustCompile(`\n{3,}`),
	}
}

// ParseCourses accepts either a single course record or an aggregate
// document of the form {"courses": [...]}.
func (cp *ContentProcessor) ParseCourses(data []byte) ([]CourseData, error) {
	var aggregate struct {
		Courses []CourseData `json:"courses"`
	}
	if err := json.Unmarshal(data, &aggregate); err != nil {
		return nil, fmt.Errorf("failed to decode course data: %w", err)
	}
	if len(aggregate.Courses) > 0 {
		return aggregate.Courses, nil
	}

	var single CourseData
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("failed to decode course data: %w", err)
	}
	if single.Course.Title == "" && single.Metadata.SourceURL == "" {
		return nil, fmt.Errorf("course data has no course section")
	}
	return []CourseData{single}, nil
}

// ProcessCourse converts a course into overview, pricing, faculty and
// curriculum documents. Faculty and curriculum documents are only
// emitted when the course lists any.
func (cp *ContentProcessor) ProcessCourse(course CourseData) []Document {
	source := course.Metadata.SourceURL
	if source == "" {
		source = course.Course.URL
	}

	docs := []Document{
		cp.document(source, SectionOverview, "Course Overview", strings.Join([]string{
			"Course Title: " + orNA(course.Course.Title),
			"Duration: " + intOrNA(course.Course.DurationWeeks) + " weeks",
			"Fellowship Duration: " + intOrNA(course.Course.FellowshipMonths) + " months",
			"Live Hours: " + intOrNA(course.Course.LiveClassHours) + "+",
			"Placement Support: " + intOrNA(course.Course.PlacementSupportYears) + " year(s)",
			"Certification: " + orNA(course.Course.CertificationAwarded),
		}, "\n")),
		cp.document(source, SectionPricing, "Pricing and Cohort", strings.Join([]string{
			"Current Cohort Price: " + orNA(course.Pricing.Display),
			"Cohort Status: " + orNA(course.Cohort.Status),
			"Start Date: " + orNA(course.Cohort.StartDate),
		}, "\n")),
	}

	if len(course.Faculty.Instructors) > 0 {
		doc := cp.document(source, SectionFaculty, "Course Instructors", people("Instructors:", course.Faculty.Instructors))
		doc.Metadata["subtype"] = "instructors"
		docs = append(docs, doc)
	}
	if len(course.Faculty.Mentors) > 0 {
		doc := cp.document(source, SectionFaculty, "Course Mentors", people("Mentors:", course.Faculty.Mentors))
		doc.Metadata["subtype"] = "mentors"
		docs = append(docs, doc)
	}

	for _, module := range course.Curriculum {
		title := module.Title
		if title == "" {
			title = "Curriculum Module"
		}
		docs = append(docs, cp.document(source, SectionCurriculum, title,
			"Module: "+module.Title+"\n"+module.Content))
	}

	return docs
}

func (cp *ContentProcessor) document(source, sectionType, title, content string) Document {
	return Document{
		Content: cp.CleanContent(content),
		Metadata: map[string]string{
			"source":       source,
			"section_type": sectionType,
			"title":        title,
		},
	}
}

// CleanContent collapses runs of spaces and blank lines, keeping line structure.
func (cp *ContentProcessor) CleanContent(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(cp.multiWhitespace.ReplaceAllString(line, " "))
	}
	content = strings.Join(lines, "\n")

	return strings.TrimSpace(cp.blankLines.ReplaceAllString(content, "\n\n"))
}

func people(header string, list []Person) string {
	lines := []string{header}
	for _, p := range list {
		lines = append(lines, fmt.Sprintf("- %s (%s at %s)", p.Name, p.Designation, p.Company))
	}
	return strings.Join(lines, "\n")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

func intOrNA(v *int) string {
	if v == nil {
		return notAvailable
	}
	return strconv.Itoa(*v)
}
