package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/opd-token-allocation/internal/allocation"
	"github.com/hackgods/opd-token-allocation/internal/config"
	"github.com/hackgods/opd-token-allocation/internal/logging"
	redisclient "github.com/hackgods/opd-token-allocation/internal/redis"
	"github.com/hackgods/opd-token-allocation/internal/roster"
)

type SimConfig struct {
	Doctors      int
	Patients     int // per doctor
	DelayMinutes int
	Seed         uint64
	RosterFile   string
	Publish      bool
}

var simCfg SimConfig

var rootCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated OPD day against an in-process allocation engine",
	RunE:  runSimulate,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print engine events published to Redis",
	RunE:  runWatch,
}

func init() {
	f := rootCmd.Flags()
	f.IntVar(&simCfg.Doctors, "doctors", 3, "Doctors to generate when no roster is given")
	f.IntVar(&simCfg.Patients, "patients", 40, "Tokens submitted per doctor")
	f.IntVar(&simCfg.DelayMinutes, "delay", 45, "Delay applied to each doctor mid-day (0 disables)")
	f.Uint64Var(&simCfg.Seed, "seed", 0, "Random seed (0 picks one)")
	f.StringVar(&simCfg.RosterFile, "roster", "", "Roster YAML to register instead of generated doctors")
	f.BoolVar(&simCfg.Publish, "publish", false, "Publish engine events to Redis as configured")
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// simClock starts at the beginning of the day and moves forward on every
// read, so the run covers a working day in simulated time.
type simClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

// Tally counts labelled outcomes from concurrent workers.
type Tally struct {
	mu     sync.Mutex
	counts map[string]int
}

func (t *Tally) Add(label string, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counts == nil {
		t.counts = make(map[string]int)
	}
	t.counts[label] += n
}

func (t *Tally) Sorted() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.counts))
	for k, v := range t.counts {
		out = append(out, fmt.Sprintf("%-32s %d", k, v))
	}
	sort.Strings(out)
	return out
}

type Simulator struct {
	config      SimConfig
	svc         *allocation.Service
	logger      zerolog.Logger
	admissions  Tally
	disruptions Tally
	events      atomic.Int64
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(cfg.Env)

	if simCfg.Patients <= 0 {
		return errors.New("--patients must be > 0")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	now := time.Now()
	clock := &simClock{
		t:    time.Date(now.Year(), now.Month(), now.Day(), 8, 30, 0, 0, now.Location()),
		step: 20 * time.Second,
	}

	sim := &Simulator{config: simCfg, logger: logger}
	sinks := allocation.MultiSink{allocation.SinkFunc(func(context.Context, allocation.Event) error {
		sim.events.Add(1)
		return nil
	})}

	if simCfg.Publish {
		if cfg.RedisAddr == "" {
			return errors.New("--publish needs REDIS_URL or REDIS_ADDR")
		}
		rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		sinks = append(sinks, redisclient.NewEventPublisher(rdb, cfg.EventsChannel))
		logger.Info().Str("channel", cfg.EventsChannel).Msg("publishing events to Redis")
	}

	sim.svc = allocation.NewService(zerolog.Nop(),
		allocation.WithClock(clock.Now),
		allocation.WithEventSink(sinks),
	)

	doctors, err := sim.registerDoctors(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info().Int("doctors", len(doctors)).Int("patients_per_doctor", simCfg.Patients).Msg("simulation starting")

	sim.Run(ctx, doctors)
	sim.PrintReport(ctx, doctors)
	return nil
}

func (s *Simulator) registerDoctors(ctx context.Context, cfg config.Config) ([]uuid.UUID, error) {
	r := &roster.Roster{}
	if s.config.RosterFile != "" {
		loaded, err := roster.Load(s.config.RosterFile)
		if err != nil {
			return nil, err
		}
		r = loaded
	} else {
		faker := gofakeit.New(s.config.Seed)
		for i := 0; i < s.config.Doctors; i++ {
			r.Doctors = append(r.Doctors, roster.Doctor{
				Name:             "Dr. " + faker.Name(),
				Specialty:        "General Medicine",
				WorkStart:        "09:00",
				WorkEnd:          "13:00",
				EmergencyPerSlot: 1,
				EmergencyPerDay:  4,
			})
		}
	}

	if _, err := r.Register(ctx, s.svc, cfg.SlotDuration, cfg.SlotCapacity); err != nil {
		return nil, err
	}
	doctors := s.svc.ListDoctors(ctx)
	ids := make([]uuid.UUID, len(doctors))
	for i, d := range doctors {
		ids[i] = d.ID
	}
	return ids, nil
}

// Run drives one worker per doctor. Doctors never share state in the
// engine, so the workers proceed in parallel.
func (s *Simulator) Run(ctx context.Context, doctors []uuid.UUID) {
	var wg sync.WaitGroup
	for i, id := range doctors {
		wg.Add(1)
		go func(workerID int, doctorID uuid.UUID) {
			defer wg.Done()
			seed := s.config.Seed
			if seed != 0 {
				seed += uint64(workerID)
			}
			s.worker(ctx, doctorID, gofakeit.New(seed))
		}(i, id)
	}
	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

var classWeights = []struct {
	class  string
	weight int
}{
	{"walk_in", 35},
	{"online", 25},
	{"follow_up", 15},
	{"paid_priority", 15},
	{"emergency", 10},
}

func pickClass(faker *gofakeit.Faker) string {
	n := faker.Number(1, 100)
	for _, cw := range classWeights {
		if n <= cw.weight {
			return cw.class
		}
		n -= cw.weight
	}
	return "walk_in"
}

func (s *Simulator) worker(ctx context.Context, doctorID uuid.UUID, faker *gofakeit.Faker) {
	flex := []string{"", "low", "medium", "high"}
	var tokens []uuid.UUID

	for i := 0; i < s.config.Patients; i++ {
		if ctx.Err() != nil {
			return
		}

		adm, err := s.svc.SubmitToken(ctx, allocation.SubmitTokenInput{
			DoctorID:    doctorID,
			PatientName: faker.Name(),
			PatientAge:  faker.Number(1, 90),
			Class:       pickClass(faker),
			Flexibility: flex[faker.Number(0, len(flex)-1)],
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("submit failed")
			continue
		}
		s.admissions.Add(string(adm.Outcome), 1)
		tokens = append(tokens, adm.Token.ID)

		pick := func() uuid.UUID { return tokens[faker.Number(0, len(tokens)-1)] }
		switch {
		case i%5 == 4:
			s.transition(ctx, "complete", s.svc.CompleteToken, pick())
		case i%7 == 6:
			s.transition(ctx, "cancel", s.svc.CancelToken, pick())
		case i%11 == 10:
			s.transition(ctx, "no_show", s.svc.MarkNoShow, pick())
		}

		if s.config.DelayMinutes > 0 && i == s.config.Patients/2 {
			out, err := s.svc.ApplyDelay(ctx, doctorID, time.Duration(s.config.DelayMinutes)*time.Minute)
			if err == nil {
				s.disruptions.Add("delay", 1)
				s.disruptions.Add("delay displaced", len(out.Displaced))
				s.disruptions.Add("delay reassigned", out.Reassigned)
			}
		}
		if s.config.DelayMinutes > 0 && i == s.config.Patients*3/4 {
			if _, assigned, err := s.svc.ResumeDoctor(ctx, doctorID); err == nil {
				s.disruptions.Add("resume", 1)
				s.disruptions.Add("resume assigned", assigned)
			}
		}
	}
}

func (s *Simulator) transition(ctx context.Context, kind string, op func(context.Context, uuid.UUID) (*allocation.Token, error), id uuid.UUID) {
	if _, err := op(ctx, id); err != nil {
		if errors.Is(err, allocation.ErrInvalidStatusTransition) {
			s.disruptions.Add(kind+" rejected", 1)
			return
		}
		s.logger.Error().Err(err).Str("kind", kind).Msg("transition failed")
		return
	}
	s.disruptions.Add(kind, 1)
}

func (s *Simulator) PrintReport(ctx context.Context, doctors []uuid.UUID) {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Doctors: %d\n", len(doctors))
	fmt.Printf("Tokens per doctor: %d\n", s.config.Patients)
	fmt.Printf("Events emitted: %d\n", s.events.Load())
	fmt.Println()

	printSection("Admission outcomes", s.admissions.Sorted())
	printSection("Disruptions", s.disruptions.Sorted())

	for _, d := range s.svc.ListDoctors(ctx) {
		sum, err := s.svc.Summary(ctx, d.ID)
		if err != nil {
			continue
		}
		fmt.Printf("%s (%s):\n", d.Name, d.ID)
		fmt.Printf("  Slots: %d available=%d full=%d blocked=%d\n",
			sum.Slots, sum.AvailableSlots, sum.FullSlots, sum.BlockedSlots)
		fmt.Printf("  Seats: %d/%d occupied, queue=%d, emergency quota used=%d\n",
			sum.Occupied, sum.Capacity, sum.QueueLength, sum.EmergencyQuotaUsed)

		states := make([]string, 0, len(sum.Tokens))
		for state, n := range sum.Tokens {
			states = append(states, fmt.Sprintf("%s=%d", state, n))
		}
		sort.Strings(states)
		fmt.Printf("  Tokens: %s\n", strings.Join(states, " "))

		if queue, err := s.svc.Queue(ctx, d.ID); err == nil && len(queue) > 0 {
			head := queue[0]
			fmt.Printf("  Queue head: %s (%s, priority %.3f)\n", head.PatientName, head.Class, head.Priority)
		}
		fmt.Println()
	}
}

func printSection(title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Printf("%s:\n", title)
	for _, l := range lines {
		fmt.Printf("  %s\n", l)
	}
	fmt.Println()
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(cfg.Env)
	if cfg.RedisAddr == "" {
		return errors.New("watch needs REDIS_URL or REDIS_ADDR")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	pub := redisclient.NewEventPublisher(rdb, cfg.EventsChannel)
	logger.Info().Str("channel", pub.Channel()).Msg("watching events")

	err = pub.Subscribe(ctx, func(ev allocation.Event) {
		e := logger.Info().
			Str("event_type", ev.EventType).
			Str("doctor_id", ev.DoctorID.String()).
			Interface("payload", ev.Payload)
		if ev.TokenID != nil {
			e = e.Str("token_id", ev.TokenID.String())
		}
		e.Msg("event")
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
