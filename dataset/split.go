package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/mathscore/pkg/errors"
)

// DefaultTestRatio and DefaultSeed reproduce the reference split (20% test, seed 42).
const (
	DefaultTestRatio = 0.2
	DefaultSeed      = 42
)

// TrainTestSplit shuffles row indices with a seeded PCG source and puts the
// first ceil(n*testRatio) of them into the test table. The same table, ratio
// and seed always give the same split.
func TrainTestSplit(t *Table, testRatio float64, seed uint64) (train, test *Table, err error) {
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, errors.NewIngestionError("split", "", fmt.Errorf("test ratio must be in (0, 1), got %v", testRatio))
	}
	n := t.Rows()
	nTest := int(math.Ceil(float64(n) * testRatio))
	if n < 2 || nTest >= n {
		return nil, nil, errors.NewIngestionError("split", "",
			fmt.Errorf("cannot split %d rows with test ratio %v", n, testRatio))
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)
	return t.Subset(perm[nTest:]), t.Subset(perm[:nTest]), nil
}
