package reader

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
)

// nameRetries bounds collision retries before falling back to a numeric
// suffix.
const nameRetries = 10

// suffixRange is the exclusive upper bound for the fallback numeric suffix.
const suffixRange = 1000

// Word pools for generated reader names. Names are only a human-friendly
// handle for operators locating a physical device; uniqueness is enforced
// against the store, not the pool size.
var (
	nameAdjectives = []string{
		"amber", "bold", "brisk", "calm", "clever", "copper", "crimson",
		"daring", "dusty", "eager", "fuzzy", "gentle", "golden", "happy",
		"icy", "jolly", "keen", "lively", "lucky", "mellow", "nimble",
		"olive", "proud", "quiet", "rapid", "rusty", "silent", "silver",
		"sly", "snowy", "steady", "stormy", "sunny", "swift", "tidy",
		"velvet", "vivid", "wild", "witty", "zesty",
	}
	nameNouns = []string{
		"anvil", "badger", "beacon", "bobbin", "caliper", "chisel",
		"comet", "condor", "dynamo", "falcon", "gasket", "gears",
		"hammer", "heron", "ingot", "jigsaw", "kestrel", "lathe",
		"magpie", "mallet", "marmot", "otter", "pelican", "piston",
		"plasma", "pulley", "quartz", "rivet", "sander", "socket",
		"sparrow", "spindle", "sprocket", "tongs", "torque", "turbine",
		"vise", "walrus", "wrench", "zephyr",
	}
)

// GenerateName returns a random adjective-noun reader name, e.g.
// "swift-sprocket". Uniqueness is not guaranteed; use UniqueName for that.
func GenerateName() string {
	adj := nameAdjectives[rand.Intn(len(nameAdjectives))]
	noun := nameNouns[rand.Intn(len(nameNouns))]
	return adj + "-" + noun
}

// UniqueName generates a reader name that does not collide with any
// existing reader. It retries random generation a fixed number of times;
// on exhaustion it disambiguates with a random numeric suffix.
func UniqueName(ctx context.Context, repo Repository) (string, error) {
	for i := 0; i < nameRetries; i++ {
		name := GenerateName()
		_, err := repo.GetByName(ctx, name)
		if errors.Is(err, ErrNotFound) {
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("checking name availability: %w", err)
		}
	}
	return fmt.Sprintf("%s-%d", GenerateName(), rand.Intn(suffixRange)), nil
}
