package ml

import "time"

// DefaultTrainingSet returns a starter job history for demo and test
// setups. It covers all five machines with five workers whose profiles
// differ: fast-but-rough, slow-but-precise, and balanced, so the
// predictor has real trade-offs to rank.
func DefaultTrainingSet() []TrainingRecord {
	now := time.Now()
	day := func(n int) time.Time { return now.AddDate(0, 0, -n) }

	return []TrainingRecord{
		// Machine 1: precision work
		{1, "Maria", 58, 98, day(3)},
		{1, "Maria", 62, 97, day(9)},
		{1, "James", 24, 84, day(5)},
		{1, "Chen", 34, 91, day(7)},
		{1, "Aisha", 71, 96, day(12)},

		// Machine 2: general production
		{2, "Chen", 31, 90, day(2)},
		{2, "Chen", 28, 89, day(8)},
		{2, "James", 16, 82, day(4)},
		{2, "Viktor", 26, 87, day(6)},
		{2, "Maria", 49, 95, day(14)},

		// Machine 3: rush jobs
		{3, "James", 12, 81, day(1)},
		{3, "James", 14, 83, day(6)},
		{3, "Viktor", 22, 86, day(3)},
		{3, "Chen", 27, 88, day(10)},

		// Machine 4: heavy assemblies
		{4, "Aisha", 68, 94, day(4)},
		{4, "Aisha", 75, 96, day(11)},
		{4, "Viktor", 41, 85, day(7)},
		{4, "Maria", 66, 97, day(16)},

		// Machine 5: finishing line
		{5, "Viktor", 33, 88, day(2)},
		{5, "Chen", 30, 90, day(5)},
		{5, "Aisha", 59, 95, day(9)},
		{5, "James", 19, 80, day(13)},
	}
}
