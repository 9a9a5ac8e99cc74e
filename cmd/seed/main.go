package main

import (
	"fmt"
	"os"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hackgods/opd-token-allocation/internal/logging"
	"github.com/hackgods/opd-token-allocation/internal/roster"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var shifts = [][2]string{
	{"08:00", "12:00"},
	{"09:00", "13:00"},
	{"10:00", "16:00"},
	{"14:00", "18:00"},
}

var (
	outPath string
	count   int
	seed    uint64
)

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate a fake doctor roster for the OPD allocation server",
	RunE:  runSeed,
}

func init() {
	rootCmd.Flags().StringVarP(&outPath, "out", "o", "roster.yaml", "Roster file to write")
	rootCmd.Flags().IntVarP(&count, "doctors", "n", 10, "Number of doctors to generate")
	rootCmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (0 picks one)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	logger := logging.Setup(os.Getenv("APP_ENV"))
	if count <= 0 {
		return fmt.Errorf("--doctors must be > 0")
	}

	r := generate(gofakeit.New(seed), count)
	if err := r.Save(outPath); err != nil {
		return err
	}

	logger.Info().Int("doctors", count).Str("file", outPath).Msg("roster written")
	return nil
}

func generate(faker *gofakeit.Faker, n int) *roster.Roster {
	r := &roster.Roster{Doctors: make([]roster.Doctor, 0, n)}
	for i := 0; i < n; i++ {
		shift := shifts[faker.Number(0, len(shifts)-1)]
		r.Doctors = append(r.Doctors, roster.Doctor{
			ID:               uuid.NewString(),
			Name:             "Dr. " + faker.Name(),
			Specialty:        specialties[faker.Number(0, len(specialties)-1)],
			WorkStart:        shift[0],
			WorkEnd:          shift[1],
			SlotMinutes:      []int{10, 15, 20}[faker.Number(0, 2)],
			SlotCapacity:     faker.Number(2, 4),
			EmergencyPerSlot: 1,
			EmergencyPerDay:  faker.Number(3, 6),
		})
	}
	return r
}
