package main

import (
	"github.com/sagerock/ai-law-research/internal/bootstrap"
	"github.com/sagerock/ai-law-research/internal/interfaces/http/handlers"
)

// healthCheckers exposes the backend checks to the readiness endpoint.
func healthCheckers(infra *bootstrap.Infrastructure) []handlers.HealthChecker {
	checks := infra.Checks()
	out := make([]handlers.HealthChecker, 0, len(checks))
	for _, c := range checks {
		out = append(out, handlers.CheckFunc{Component: c.Name, Fn: c.Fn})
	}
	return out
}

//Personal.AI order the ending
