package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/timeweaver/timeweaver-api/internal/models"
	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
)

type curriculumStore interface {
	ListCurriculum(ctx context.Context, departmentID string, yearLevel int, semesterType models.SemesterType) ([]models.CurriculumEntry, error)
	ListCourses(ctx context.Context, ids []string) ([]models.Course, error)
}

// SectionCourses is the resolved course load of a section for one semester,
// partitioned by category.
type SectionCourses struct {
	Section               models.Section  `json:"section"`
	YearLevel             int             `json:"year_level"`
	SemesterNumber        int             `json:"semester_number"`
	Core                  []models.Course `json:"core"`
	ProfessionalElectives []models.Course `json:"professional_electives"`
	FreeElectives         []models.Course `json:"free_electives"`
	Projects              []models.Course `json:"projects"`
	Mentoring             []models.Course `json:"mentoring"`
	TotalCount            int             `json:"total_count"`
}

// All flattens the partition back into a single course list, core first.
func (sc *SectionCourses) All() []models.Course {
	out := make([]models.Course, 0, sc.TotalCount)
	out = append(out, sc.Core...)
	out = append(out, sc.ProfessionalElectives...)
	out = append(out, sc.FreeElectives...)
	out = append(out, sc.Projects...)
	out = append(out, sc.Mentoring...)
	return out
}

// CurriculumService resolves which courses each section takes in a given
// semester from the batch years and the curriculum mappings.
type CurriculumService struct {
	repo   curriculumStore
	logger *zap.Logger
}

// NewCurriculumService constructs the service.
func NewCurriculumService(repo curriculumStore, logger *zap.Logger) *CurriculumService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CurriculumService{repo: repo, logger: logger}
}

// YearLevel derives the section's current year of study from the semester's
// academic year. The result is clamped to the 1..4 range so sections whose
// batch lies outside the programme window still resolve to a study year.
func (s *CurriculumService) YearLevel(section models.Section, semester models.Semester) (int, error) {
	startYear, err := academicYearStart(semester.AcademicYear)
	if err != nil {
		return 0, err
	}
	level := (startYear - section.BatchYearStart) + 1
	if level < 1 {
		level = 1
	}
	if level > 4 {
		level = 4
	}
	return level, nil
}

// SemesterNumber maps a year level and semester parity onto the 1..8 ordinal.
func (s *CurriculumService) SemesterNumber(yearLevel int, semesterType models.SemesterType) int {
	base := (yearLevel - 1) * 2
	if semesterType == models.SemesterOdd {
		return base + 1
	}
	return base + 2
}

// CoursesForSection resolves the section's course load for the semester,
// partitioned by course category.
func (s *CurriculumService) CoursesForSection(ctx context.Context, section models.Section, semester models.Semester) (*SectionCourses, error) {
	yearLevel, err := s.YearLevel(section, semester)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.ListCurriculum(ctx, section.DepartmentID, yearLevel, semester.SemesterType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}

	courseIDs := make([]string, 0, len(entries))
	for _, entry := range entries {
		courseIDs = append(courseIDs, entry.CourseID)
	}

	courses, err := s.repo.ListCourses(ctx, courseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}

	result := &SectionCourses{
		Section:        section,
		YearLevel:      yearLevel,
		SemesterNumber: s.SemesterNumber(yearLevel, semester.SemesterType),
		TotalCount:     len(courses),
	}
	for _, course := range courses {
		switch course.CourseCategory {
		case models.CategoryProfessionalElective:
			result.ProfessionalElectives = append(result.ProfessionalElectives, course)
		case models.CategoryFreeElective:
			result.FreeElectives = append(result.FreeElectives, course)
		case models.CategoryProject:
			result.Projects = append(result.Projects, course)
		case models.CategoryMentoring:
			result.Mentoring = append(result.Mentoring, course)
		default:
			result.Core = append(result.Core, course)
		}
	}
	return result, nil
}

// academicYearStart parses the leading year of a "YYYY-YYYY" academic year label.
func academicYearStart(academicYear string) (int, error) {
	parts := strings.SplitN(academicYear, "-", 2)
	year, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || year < 1900 {
		return 0, appErrors.Wrap(err, appErrors.ErrDataFormat.Code, appErrors.ErrDataFormat.Status,
			fmt.Sprintf("unparseable academic year %q, expected YYYY-YYYY", academicYear))
	}
	return year, nil
}
