package console

import (
	"context"
	"strconv"
	"strings"

	"github.com/cory-johannsen/boxcars/internal/frontend/telnet"
	"github.com/cory-johannsen/boxcars/internal/game/dataset"
	"github.com/cory-johannsen/boxcars/internal/game/roll"
)

// lineChooser asks the operator on the session's transport.
type lineChooser struct {
	s *Session
}

func (c *lineChooser) ChooseRegion(ctx context.Context, defaultRegion string, regions []string) (string, error) {
	s := c.s
	if err := s.println("Rolled %s, the player's current region.", s.style.Paint(telnet.Bold, defaultRegion)); err != nil {
		return "", err
	}
	for i, r := range regions {
		if err := s.println("  %d) %s", i+1, r); err != nil {
			return "", err
		}
	}
	for {
		line, err := c.ask(ctx, "Region [Enter keeps "+defaultRegion+"]: ")
		if err != nil {
			return "", err
		}
		if line == "" {
			return defaultRegion, nil
		}
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(regions) {
			return regions[n-1], nil
		}
		for _, r := range regions {
			if strings.EqualFold(r, line) {
				return r, nil
			}
		}
		if err := s.println("Unknown region %q.", line); err != nil {
			return "", err
		}
	}
}

func (c *lineChooser) ChooseHomeCity(ctx context.Context, region string, candidates []dataset.City) (int, error) {
	s := c.s
	if len(candidates) == 0 {
		if err := s.println("No unclaimed cities in %s.", region); err != nil {
			return 0, err
		}
		return 0, roll.ErrDeclined
	}
	if err := s.println("Home city in %s:", s.style.Paint(telnet.Bold, region)); err != nil {
		return 0, err
	}
	for i, city := range candidates {
		if err := s.println("  %d) %s", i+1, city.Name); err != nil {
			return 0, err
		}
	}
	for {
		line, err := c.ask(ctx, "Pick a number or name [Enter cancels]: ")
		if err != nil {
			return 0, err
		}
		if line == "" || strings.EqualFold(line, "cancel") {
			return 0, roll.ErrDeclined
		}
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(candidates) {
			return candidates[n-1].ID, nil
		}
		for _, city := range candidates {
			if dataset.NormalizeName(city.Name) == dataset.NormalizeName(line) {
				return city.ID, nil
			}
		}
		if err := s.println("%q is not a candidate.", line); err != nil {
			return 0, err
		}
	}
}

func (c *lineChooser) ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := c.s.io.WritePrompt(prompt); err != nil {
		return "", err
	}
	line, err := c.s.io.ReadLine()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
