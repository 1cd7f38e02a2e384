package orchestrator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gasopt/optimizer/internal/model"
)

// SolidityParser is the static-analysis collaborator: it returns a
// contract's name and function list without compiling or running anything.
// The real implementation lives outside this system's hard core (spec.md
// §1 Non-goals) — it is treated as an opaque library.
type SolidityParser interface {
	Parse(source string) (model.StaticProfile, error)
}

var (
	contractNameRe = regexp.MustCompile(`\bcontract\s+([A-Za-z_][A-Za-z0-9_]*)`)
	functionRe     = regexp.MustCompile(`\bfunction\s+([A-Za-z_][A-Za-z0-9_]*)\s*\([^)]*\)\s*([A-Za-z0-9_\s]*)`)
)

// RegexParser is a lightweight default SolidityParser that extracts the
// contract name and function signatures with regular expressions rather
// than a real AST. It is intentionally approximate — good enough to drive
// the pipeline's static_analysis phase without a real Solidity frontend.
type RegexParser struct{}

func NewRegexParser() *RegexParser { return &RegexParser{} }

func (p *RegexParser) Parse(source string) (model.StaticProfile, error) {
	nameMatch := contractNameRe.FindStringSubmatch(source)
	if nameMatch == nil {
		return model.StaticProfile{}, fmt.Errorf("no contract declaration found")
	}

	profile := model.StaticProfile{ContractName: nameMatch[1]}
	for _, m := range functionRe.FindAllStringSubmatch(source, -1) {
		name := m[1]
		rest := strings.Fields(m[2])

		visibility := "internal"
		mutability := model.MutabilityNonpayable
		for _, tok := range rest {
			switch tok {
			case "public", "external", "internal", "private":
				visibility = tok
			case "view":
				mutability = model.MutabilityView
			case "pure":
				mutability = model.MutabilityPure
			case "payable":
				mutability = model.MutabilityPayable
			}
		}

		profile.Functions = append(profile.Functions, model.StaticFunction{
			Name:       name,
			Visibility: visibility,
			Mutability: mutability,
		})
	}

	return profile, nil
}
