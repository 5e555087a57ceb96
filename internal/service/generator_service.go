package service

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/timeweaver/timeweaver-api/internal/models"
	"github.com/timeweaver/timeweaver-api/pkg/config"
	appErrors "github.com/timeweaver/timeweaver-api/pkg/errors"
)

// conflictPenalty is subtracted from the soft score per detected conflict
// when computing fitness.
const conflictPenalty = 0.1

type generatorTimetableStore interface {
	Create(ctx context.Context, timetable *models.Timetable) error
	UpdateMetrics(ctx context.Context, id string, status models.TimetableStatus, qualityScore *float64, conflictCount int, generationTime *float64) error
}

type generatorSlotStore interface {
	BulkInsert(ctx context.Context, slots []models.TimetableSlot) error
	ListByTimetable(ctx context.Context, timetableID string, filter models.SlotFilter) ([]models.TimetableSlot, error)
}

type generatorConflictStore interface {
	ReplaceForTimetable(ctx context.Context, timetableID string, conflicts []models.Conflict) error
}

type generatorResourceStore interface {
	GetSemester(ctx context.Context, id string) (*models.Semester, error)
	ListSections(ctx context.Context, departmentID string) ([]models.Section, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	ListTimeSlots(ctx context.Context) ([]models.TimeSlot, error)
	ListFaculty(ctx context.Context, departmentID string) ([]models.Faculty, error)
}

type generatorMetrics interface {
	ObserveGeneration(status string, duration time.Duration)
	RecordConflicts(conflictType string, count int)
}

// GenerateParams controls one generation run. MaxGenerations and
// PopulationSize override the configured defaults when positive.
type GenerateParams struct {
	SemesterID          string
	Name                string
	NumSolutions        int
	MaxGenerations      int
	PopulationSize      int
	BaselineTimetableID string // regenerate around this timetable's locked slots
	CreatedBy           *string
}

// GeneratorService evolves candidate timetables with a genetic search:
// tournament selection, midpoint crossover and single-gene mutation over an
// in-memory population, persisting only the winning candidates.
type GeneratorService struct {
	timetables generatorTimetableStore
	slots      generatorSlotStore
	conflicts  generatorConflictStore
	resources  generatorResourceStore

	curriculum  *CurriculumService
	rules       *RuleEngine
	constraints *ConstraintService
	detector    *ConflictDetector
	preferences *PreferenceService
	metrics     generatorMetrics
	cache       lockCacheInvalidator

	cfg    config.GeneratorConfig
	logger *zap.Logger
	seed   int64
}

// GeneratorOption configures the service.
type GeneratorOption func(*GeneratorService)

// WithGeneratorSeed pins the random source, used by tests.
func WithGeneratorSeed(seed int64) GeneratorOption {
	return func(s *GeneratorService) { s.seed = seed }
}

// NewGeneratorService constructs the service.
func NewGeneratorService(
	timetables generatorTimetableStore,
	slots generatorSlotStore,
	conflicts generatorConflictStore,
	resources generatorResourceStore,
	curriculum *CurriculumService,
	rules *RuleEngine,
	constraints *ConstraintService,
	detector *ConflictDetector,
	preferences *PreferenceService,
	metrics generatorMetrics,
	cache lockCacheInvalidator,
	cfg config.GeneratorConfig,
	logger *zap.Logger,
	opts ...GeneratorOption,
) *GeneratorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &GeneratorService{
		timetables:  timetables,
		slots:       slots,
		conflicts:   conflicts,
		resources:   resources,
		curriculum:  curriculum,
		rules:       rules,
		constraints: constraints,
		detector:    detector,
		preferences: preferences,
		metrics:     metrics,
		cache:       cache,
		cfg:         cfg,
		logger:      logger,
		seed:        time.Now().UnixNano(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// classRequirement is one session that must be placed somewhere on the grid.
type classRequirement struct {
	section   models.Section
	course    models.Course
	duration  int
	batch     *int
	primary   *string
	assisting []string
	locked    bool
	fixed     gene // placement when locked
}

// gene is one placement decision for a requirement.
type gene struct {
	roomID string
	day    int
	start  int
}

// candidate is one member of the population.
type candidate struct {
	genes     []gene
	fitness   float64
	conflicts int
	soft      float64
}

// arena is the immutable problem definition shared by all candidates.
type arena struct {
	requirements []classRequirement
	rooms        []models.Room
	sctx         ScheduleContext
	prefs        *PreferenceIndex
	rules        []CompiledRule
	weekdays     int
	dailySlots   int
}

// Generate runs the genetic search and persists the best candidates as new
// timetables, returning them ranked best first.
func (s *GeneratorService) Generate(ctx context.Context, params GenerateParams) ([]models.Timetable, error) {
	started := time.Now()

	arena, err := s.buildArena(ctx, params)
	if err != nil {
		s.observe("failed", started)
		return nil, err
	}
	if len(arena.requirements) == 0 {
		s.observe("failed", started)
		return nil, appErrors.Clone(appErrors.ErrGenerationFailed, "nothing to schedule: no class requirements resolved")
	}

	numSolutions := params.NumSolutions
	if numSolutions <= 0 {
		numSolutions = s.cfg.NumSolutions
	}
	if numSolutions <= 0 {
		numSolutions = 1
	}
	maxGenerations := params.MaxGenerations
	if maxGenerations <= 0 {
		maxGenerations = s.cfg.MaxGenerations
	}
	popSize := params.PopulationSize
	if popSize <= 0 {
		popSize = s.cfg.PopulationSize
	}
	if popSize < numSolutions {
		popSize = numSolutions
	}

	rng := rand.New(rand.NewSource(s.seed))
	population := make([]*candidate, popSize)
	for i := range population {
		population[i] = s.randomCandidate(rng, arena)
	}
	s.scorePopulation(population, arena)

	for generation := 0; generation < maxGenerations; generation++ {
		if err := ctx.Err(); err != nil {
			s.observe("failed", started)
			return nil, appErrors.Wrap(err, appErrors.ErrGenerationFailed.Code, appErrors.ErrGenerationFailed.Status, "generation cancelled")
		}
		population = s.evolve(rng, population, arena)
		s.scorePopulation(population, arena)
	}

	rankCandidates(population)
	winners := population
	if len(winners) > numSolutions {
		winners = winners[:numSolutions]
	}

	results, err := s.persistWinners(ctx, params, arena, winners, time.Since(started))
	if err != nil {
		s.observe("failed", started)
		return nil, err
	}

	s.observe("completed", started)
	s.logger.Info("timetable generation finished",
		zap.String("semester_id", params.SemesterID),
		zap.Int("solutions", len(results)),
		zap.Int("best_conflicts", winners[0].conflicts),
		zap.Float64("best_fitness", winners[0].fitness),
		zap.Duration("took", time.Since(started)))
	return results, nil
}

func (s *GeneratorService) observe(status string, started time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveGeneration(status, time.Since(started))
	}
}

// buildArena resolves the problem definition: requirements, rooms, rules and
// preference weights.
func (s *GeneratorService) buildArena(ctx context.Context, params GenerateParams) (*arena, error) {
	semester, err := s.resources.GetSemester(ctx, params.SemesterID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "semester not found")
	}

	sections, err := s.resources.ListSections(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	rooms, err := s.resources.ListRooms(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	grid, err := s.resources.ListTimeSlots(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slots")
	}
	faculty, err := s.resources.ListFaculty(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	if len(sections) == 0 || len(rooms) == 0 || len(grid) == 0 {
		return nil, appErrors.Clone(appErrors.ErrGenerationFailed, "incomplete reference data: sections, rooms and time slots are required")
	}

	dailySlots := s.cfg.MaxDailySlots
	if n := teachableSlots(grid); n > 0 && n < dailySlots {
		dailySlots = n
	}

	sctx := ScheduleContext{
		Sections:   map[string]models.Section{},
		Rooms:      map[string]models.Room{},
		Courses:    map[string]models.Course{},
		Faculty:    map[string]models.Faculty{},
		YearLevels: map[string]int{},
	}
	for _, room := range rooms {
		sctx.Rooms[room.ID] = room
	}
	for _, member := range faculty {
		sctx.Faculty[member.ID] = member
	}

	facultyByDept := map[string][]models.Faculty{}
	for _, member := range faculty {
		facultyByDept[member.DepartmentID] = append(facultyByDept[member.DepartmentID], member)
	}

	requirements := make([]classRequirement, 0, len(sections)*8)
	if params.BaselineTimetableID != "" {
		requirements, err = s.baselineRequirements(ctx, params.BaselineTimetableID, sections, &sctx)
		if err != nil {
			return nil, err
		}
		for _, section := range sections {
			level, err := s.curriculum.YearLevel(section, *semester)
			if err != nil {
				return nil, err
			}
			sctx.Sections[section.ID] = section
			sctx.YearLevels[section.ID] = level
		}
	} else {
		for _, section := range sections {
			load, err := s.curriculum.CoursesForSection(ctx, section, *semester)
			if err != nil {
				return nil, err
			}
			sctx.Sections[section.ID] = section
			sctx.YearLevels[section.ID] = load.YearLevel
			for _, course := range load.All() {
				sctx.Courses[course.ID] = course
				requirements = append(requirements,
					s.courseRequirements(section, course, facultyByDept[section.DepartmentID], dailySlots)...)
			}
		}
	}

	compiledRules, err := s.rules.LoadActive(ctx)
	if err != nil {
		return nil, err
	}
	prefs, err := s.preferences.BuildIndex(ctx)
	if err != nil {
		return nil, err
	}

	weekdays := s.cfg.Weekdays
	if weekdays <= 0 {
		weekdays = 5
	}
	return &arena{
		requirements: requirements,
		rooms:        rooms,
		sctx:         sctx,
		prefs:        prefs,
		rules:        compiledRules,
		weekdays:     weekdays,
		dailySlots:   dailySlots,
	}, nil
}

// teachableSlots counts the non-break periods of the day grid.
func teachableSlots(grid []models.TimeSlot) int {
	count := 0
	for _, slot := range grid {
		if !slot.IsBreak {
			count++
		}
	}
	return count
}

// courseRequirements expands a course into schedulable sessions: one period
// per theory and tutorial hour, and one contiguous lab block per batch.
func (s *GeneratorService) courseRequirements(section models.Section, course models.Course, departmentFaculty []models.Faculty, dailySlots int) []classRequirement {
	primary := pickFaculty(departmentFaculty, section.ID+course.ID)
	requirements := make([]classRequirement, 0, course.TheoryHours+course.TutorialHours+1)
	for i := 0; i < course.TheoryHours+course.TutorialHours; i++ {
		requirements = append(requirements, classRequirement{
			section:  section,
			course:   course,
			duration: 1,
			primary:  primary,
		})
	}
	if course.LabHours > 0 {
		duration := course.LabHours
		if duration > dailySlots {
			duration = dailySlots
		}
		batches := 1
		if section.StudentCount > 35 {
			batches = 2
		}
		for b := 1; b <= batches; b++ {
			batch := b
			req := classRequirement{
				section:  section,
				course:   course,
				duration: duration,
				primary:  primary,
			}
			if batches > 1 {
				req.batch = &batch
			}
			if assistant := pickFaculty(departmentFaculty, course.ID+fmt.Sprint(b)); assistant != nil && primary != nil && *assistant != *primary {
				req.assisting = []string{*assistant}
			}
			requirements = append(requirements, req)
		}
	}
	return requirements
}

// pickFaculty deterministically assigns a department faculty member to a key.
func pickFaculty(departmentFaculty []models.Faculty, key string) *string {
	if len(departmentFaculty) == 0 {
		return nil
	}
	sum := 0
	for _, c := range key {
		sum += int(c)
	}
	id := departmentFaculty[sum%len(departmentFaculty)].ID
	return &id
}

// baselineRequirements rebuilds the requirement list from an existing
// timetable: locked slots become fixed genes, unlocked slots are re-placed.
func (s *GeneratorService) baselineRequirements(ctx context.Context, timetableID string, sections []models.Section, sctx *ScheduleContext) ([]classRequirement, error) {
	slots, err := s.slots.ListByTimetable(ctx, timetableID, models.SlotFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load baseline slots")
	}
	sectionByID := map[string]models.Section{}
	for _, section := range sections {
		sectionByID[section.ID] = section
	}

	requirements := make([]classRequirement, 0, len(slots))
	for _, slot := range slots {
		section, ok := sectionByID[slot.SectionID]
		if !ok {
			continue
		}
		var course models.Course
		if slot.CourseID != nil {
			if c, ok := sctx.Courses[*slot.CourseID]; ok {
				course = c
			} else {
				course = models.Course{ID: *slot.CourseID}
				sctx.Courses[course.ID] = course
			}
		}
		req := classRequirement{
			section:   section,
			course:    course,
			duration:  slot.DurationSlots,
			batch:     slot.BatchNumber,
			primary:   slot.PrimaryFacultyID,
			assisting: slot.AssistingFacultyIDs,
			locked:    slot.IsLocked,
			fixed:     gene{roomID: slot.RoomID, day: slot.DayOfWeek, start: slot.StartSlot},
		}
		requirements = append(requirements, req)
	}
	return requirements, nil
}

// randomCandidate places every unlocked requirement uniformly over allowed
// rooms, days and fitting start slots.
func (s *GeneratorService) randomCandidate(rng *rand.Rand, a *arena) *candidate {
	genes := make([]gene, len(a.requirements))
	for i, req := range a.requirements {
		if req.locked {
			genes[i] = req.fixed
			continue
		}
		genes[i] = s.randomGene(rng, a, req)
	}
	return &candidate{genes: genes}
}

func (s *GeneratorService) randomGene(rng *rand.Rand, a *arena, req classRequirement) gene {
	batchSize := req.section.StudentCount
	if req.batch != nil {
		batchSize = (req.section.StudentCount + 1) / 2
	}
	allowed := make([]models.Room, 0, len(a.rooms))
	for _, room := range a.rooms {
		if s.constraints.RoomAllowed(req.section, req.course, room, batchSize) {
			allowed = append(allowed, room)
		}
	}
	if len(allowed) == 0 {
		// No feasible room; fall back to the full pool and let the detector
		// surface the violation.
		allowed = a.rooms
	}

	maxStart := a.dailySlots - req.duration
	if maxStart < 0 {
		maxStart = 0
	}
	return gene{
		roomID: allowed[rng.Intn(len(allowed))].ID,
		day:    rng.Intn(a.weekdays),
		start:  rng.Intn(maxStart + 1),
	}
}

// scorePopulation computes fitness for every candidate using a bounded worker
// pool, waiting for the full generation before returning.
func (s *GeneratorService) scorePopulation(population []*candidate, a *arena) {
	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan *candidate)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for c := range jobs {
				s.score(c, a)
			}
		}()
	}
	for _, c := range population {
		jobs <- c
	}
	close(jobs)
	wg.Wait()
}

// score computes conflicts, soft score and fitness for one candidate.
func (s *GeneratorService) score(c *candidate, a *arena) {
	slots := candidateSlots(a, c)

	conflicts := s.detector.Detect(slots, a.sctx)
	evaluation := s.rules.Evaluate(a.rules, slots, a.sctx)
	conflictCount := len(conflicts) + len(evaluation.HardViolations)

	var placementSum float64
	for i, req := range a.requirements {
		g := c.genes[i]
		score := s.constraints.HomeRoomScore(req.section, g.roomID)
		if req.primary != nil {
			for offset := g.start; offset < g.start+req.duration; offset++ {
				score += a.prefs.Weight(*req.primary, g.day, offset)
			}
		}
		placementSum += score
	}
	placementAvg := placementSum / float64(len(a.requirements))
	soft := (placementAvg + evaluation.SoftScore) / 2

	c.conflicts = conflictCount
	c.soft = soft
	c.fitness = clamp01(soft - conflictPenalty*float64(conflictCount))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// candidateSlots materializes a candidate into slot records with stable
// in-arena identifiers.
func candidateSlots(a *arena, c *candidate) []models.TimetableSlot {
	slots := make([]models.TimetableSlot, len(a.requirements))
	for i, req := range a.requirements {
		g := c.genes[i]
		courseID := req.course.ID
		slot := models.TimetableSlot{
			ID:            fmt.Sprintf("gene-%d", i),
			SectionID:     req.section.ID,
			RoomID:        g.roomID,
			StartSlot:     g.start,
			DurationSlots: req.duration,
			DayOfWeek:     g.day,
			BatchNumber:   req.batch,
			IsLocked:      req.locked,
		}
		if courseID != "" {
			slot.CourseID = &courseID
		}
		if req.primary != nil {
			slot.PrimaryFacultyID = req.primary
		}
		if len(req.assisting) > 0 {
			slot.AssistingFacultyIDs = req.assisting
		}
		slots[i] = slot
	}
	return slots
}

// evolve produces the next generation: elites survive unchanged, the rest
// come from tournament selection, midpoint crossover and mutation.
func (s *GeneratorService) evolve(rng *rand.Rand, population []*candidate, a *arena) []*candidate {
	rankCandidates(population)

	next := make([]*candidate, 0, len(population))
	elites := s.cfg.ElitismCount
	if elites > len(population) {
		elites = len(population)
	}
	for i := 0; i < elites; i++ {
		clone := &candidate{genes: append([]gene(nil), population[i].genes...)}
		next = append(next, clone)
	}

	for len(next) < len(population) {
		parentA := tournament(rng, population)
		parentB := tournament(rng, population)
		child := crossover(parentA, parentB, a)
		if rng.Float64() < s.cfg.MutationRate {
			s.mutate(rng, child, a)
		}
		next = append(next, child)
	}
	return next
}

// tournament picks the best of three random candidates.
func tournament(rng *rand.Rand, population []*candidate) *candidate {
	best := population[rng.Intn(len(population))]
	for i := 0; i < 2; i++ {
		challenger := population[rng.Intn(len(population))]
		if challenger.fitness > best.fitness {
			best = challenger
		}
	}
	return best
}

// crossover splices the parents at the midpoint; locked genes always keep
// their fixed placement.
func crossover(parentA, parentB *candidate, a *arena) *candidate {
	genes := make([]gene, len(parentA.genes))
	mid := len(genes) / 2
	copy(genes[:mid], parentA.genes[:mid])
	copy(genes[mid:], parentB.genes[mid:])
	for i, req := range a.requirements {
		if req.locked {
			genes[i] = req.fixed
		}
	}
	return &candidate{genes: genes}
}

// mutate re-places one random unlocked requirement.
func (s *GeneratorService) mutate(rng *rand.Rand, c *candidate, a *arena) {
	unlocked := make([]int, 0, len(a.requirements))
	for i, req := range a.requirements {
		if !req.locked {
			unlocked = append(unlocked, i)
		}
	}
	if len(unlocked) == 0 {
		return
	}
	idx := unlocked[rng.Intn(len(unlocked))]
	c.genes[idx] = s.randomGene(rng, a, a.requirements[idx])
}

// rankCandidates orders the population best first: fewest conflicts, then
// highest fitness.
func rankCandidates(population []*candidate) {
	sort.SliceStable(population, func(i, j int) bool {
		if population[i].conflicts != population[j].conflicts {
			return population[i].conflicts < population[j].conflicts
		}
		return population[i].fitness > population[j].fitness
	})
}

// persistWinners stores each winning candidate as a completed timetable with
// its slots and detected conflicts.
func (s *GeneratorService) persistWinners(ctx context.Context, params GenerateParams, a *arena, winners []*candidate, took time.Duration) ([]models.Timetable, error) {
	results := make([]models.Timetable, 0, len(winners))
	for rank, winner := range winners {
		name := params.Name
		if name == "" {
			name = "Generated timetable"
		}
		if len(winners) > 1 {
			name = fmt.Sprintf("%s (option %d)", name, rank+1)
		}

		timetable := models.Timetable{
			ID:              uuid.NewString(),
			SemesterID:      params.SemesterID,
			Name:            name,
			Status:          models.TimetableStatusGenerating,
			Algorithm:       "genetic",
			CreatedByUserID: params.CreatedBy,
		}
		if err := s.timetables.Create(ctx, &timetable); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable")
		}

		slots := candidateSlots(a, winner)
		for i := range slots {
			slots[i].ID = uuid.NewString()
			slots[i].TimetableID = timetable.ID
		}
		if err := s.slots.BulkInsert(ctx, slots); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable slots")
		}

		conflicts := s.detector.Detect(slots, a.sctx)
		if err := s.conflicts.ReplaceForTimetable(ctx, timetable.ID, conflicts); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store conflicts")
		}
		if s.metrics != nil {
			byType := map[string]int{}
			for _, conflict := range conflicts {
				byType[string(conflict.ConflictType)]++
			}
			for conflictType, count := range byType {
				s.metrics.RecordConflicts(conflictType, count)
			}
		}

		quality := winner.fitness
		seconds := took.Seconds()
		if err := s.timetables.UpdateMetrics(ctx, timetable.ID, models.TimetableStatusCompleted, &quality, len(conflicts), &seconds); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize timetable")
		}
		if s.cache != nil {
			s.cache.InvalidateTimetable(ctx, timetable.ID)
		}

		timetable.Status = models.TimetableStatusCompleted
		timetable.QualityScore = &quality
		timetable.ConflictCount = len(conflicts)
		timetable.GenerationTime = &seconds
		results = append(results, timetable)
	}
	return results, nil
}
