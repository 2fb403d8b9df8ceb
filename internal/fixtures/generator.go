package fixtures

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/okian/matchform/internal/domain/model"
	"github.com/okian/matchform/pkg/logger"
)

// Goal and possession model parameters.
const (
	homeGoalRate      = 1.5
	awayGoalRate      = 1.1
	shotsPerGoal      = 4.0
	baseShots         = 6.0
	baseTackles       = 15.0
	tackleSpread      = 6.0
	possessionMid     = 50.0
	possessionSpread  = 12.0
	possessionNoise   = 6.0
	strengthMin       = 0.6
	strengthRange     = 0.9
	minPossession     = 20.0
	maxPossession     = 80.0
	possessionDecimal = 10
)

// matchNamespace seeds the deterministic SHA1 match ids.
var matchNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("matchform/fixtures")) //nolint:gochecknoglobals // fixed namespace

// Generate builds a league from cfg. The same config always yields the same
// league, ids included.
func Generate(ctx context.Context, cfg Config) (*League, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.KickoffStep <= 0 {
		cfg.KickoffStep = defaultKickoffStep
	}
	if len(cfg.Competitions) == 0 {
		cfg.Competitions = []string{"league"}
	}

	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // deterministic fixtures
	teams := make([]string, cfg.Teams)
	strength := make(map[string]float64, cfg.Teams)
	for i := range teams {
		teams[i] = fmt.Sprintf("team-%02d", i+1)
		strength[teams[i]] = strengthMin + rng.Float64()*strengthRange
	}

	league := &League{
		Teams: teams,
		Table: &model.Table{Columns: Columns()},
	}
	rounds := schedule(teams)
	kickoff := cfg.Start

	for season := 0; season < cfg.Seasons; season++ {
		for r, round := range rounds {
			comp := cfg.Competitions[r%len(cfg.Competitions)]
			for i, pair := range round {
				at := kickoff.Add(time.Duration(i/2) * cfg.KickoffStep)
				id := matchID(season, pair[0], pair[1])
				res, home, away := play(rng, cfg, id, pair[0], pair[1], at, strength)
				home.Competition = comp
				away.Competition = comp
				league.Results = append(league.Results, res)
				league.Table.Records = append(league.Table.Records, home, away)
			}
			kickoff = kickoff.Add(cfg.RoundGap)
		}
		kickoff = kickoff.Add(cfg.SeasonGap - cfg.RoundGap)
	}

	for u := 0; u < cfg.Upcoming; u++ {
		round := rounds[u%len(rounds)]
		for i, pair := range round {
			at := kickoff.Add(time.Duration(i/2) * cfg.KickoffStep)
			id := matchID(cfg.Seasons+u/len(rounds), pair[0], pair[1])
			home := model.NewMatchRecord(id, pair[0], pair[1], at)
			home.Home = true
			away := model.NewMatchRecord(id, pair[1], pair[0], at)
			league.Table.Records = append(league.Table.Records, home, away)
		}
		kickoff = kickoff.Add(cfg.RoundGap)
	}

	logger.Get().Info(ctx, "generated league",
		logger.Int("teams", cfg.Teams),
		logger.Int("results", len(league.Results)),
		logger.Int("records", len(league.Table.Records)))
	return league, nil
}

func matchID(season int, home, away string) string {
	return uuid.NewSHA1(matchNamespace, []byte(fmt.Sprintf("%d/%s/%s", season, home, away))).String()
}

// play draws one match and returns the result plus the home and away rows.
func play(rng *rand.Rand, cfg Config, id, homeID, awayID string, at time.Time, strength map[string]float64) (model.MatchResult, *model.MatchRecord, *model.MatchRecord) {
	sh, sa := strength[homeID], strength[awayID]
	hg := poisson(rng, homeGoalRate*sh/sa)
	ag := poisson(rng, awayGoalRate*sa/sh)

	homePoss := possessionMid + possessionSpread*(sh-sa) + rng.NormFloat64()*possessionNoise
	homePoss = math.Round(clamp(homePoss, minPossession, maxPossession)*possessionDecimal) / possessionDecimal

	res := model.MatchResult{ID: id, HomeID: homeID, AwayID: awayID, HomeGoals: hg, AwayGoals: ag, Timestamp: at}

	home := model.NewMatchRecord(id, homeID, awayID, at)
	home.Home = true
	fillStats(rng, cfg, home, hg, 100-homePoss)

	away := model.NewMatchRecord(id, awayID, homeID, at)
	fillStats(rng, cfg, away, ag, homePoss)
	return res, home, away
}

func fillStats(rng *rand.Rand, cfg Config, r *model.MatchRecord, goals int, oppPossession float64) {
	r.Stats[StatGoals] = float64(goals)
	r.Stats[StatShots] = math.Round(baseShots + float64(goals)*shotsPerGoal + rng.Float64()*baseShots)
	if rng.Float64() >= cfg.MissingRate {
		r.Stats[StatTackles] = math.Round(baseTackles + rng.NormFloat64()*tackleSpread/2 + oppPossession/tackleSpread)
	}
	r.Stats[StatOppPossession] = oppPossession
}

// poisson draws from a Poisson distribution using Knuth's method.
func poisson(rng *rand.Rand, lambda float64) int {
	limit := math.Exp(-lambda)
	k := 0
	p := rng.Float64()
	for p > limit {
		k++
		p *= rng.Float64()
	}
	return k
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// schedule returns a double round-robin built with the circle method. The
// second half mirrors the first with venues swapped.
func schedule(teams []string) [][][2]string {
	slots := append([]string(nil), teams...)
	if len(slots)%2 == 1 {
		slots = append(slots, "")
	}
	n := len(slots)
	var first [][][2]string
	for r := 0; r < n-1; r++ {
		var round [][2]string
		for i := 0; i < n/2; i++ {
			a, b := slots[i], slots[n-1-i]
			if a == "" || b == "" {
				continue
			}
			if r%2 == 1 {
				a, b = b, a
			}
			round = append(round, [2]string{a, b})
		}
		first = append(first, round)
		// rotate every slot except the first
		last := slots[n-1]
		copy(slots[2:], slots[1:n-1])
		slots[1] = last
	}

	rounds := make([][][2]string, 0, 2*len(first))
	rounds = append(rounds, first...)
	for _, round := range first {
		mirrored := make([][2]string, len(round))
		for i, p := range round {
			mirrored[i] = [2]string{p[1], p[0]}
		}
		rounds = append(rounds, mirrored)
	}
	return rounds
}
