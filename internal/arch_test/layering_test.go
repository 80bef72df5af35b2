package arch_test

import (
	"path/filepath"
	"strings"
	"testing"
)

// layers assigns each internal package to a numeric layer. A package at
// layer N may only import packages at layer N or below.
var layers = map[string]int{
	"linkgraph": 0,
	"telemetry": 0,

	"rank":   1,
	"corpus": 1,

	"config": 2,
	"report": 2,

	"engine": 3,
	"store":  3,
	"render": 3,
	"watch":  3,

	"wire": 4,
	"ui":   4,

	"server": 5,
	"rpc":    5,
	"queue":  5,
	"tui":    5,
}

// coreTransports lists import path prefixes the ranking core must never
// depend on. The core is pure computation; transports live in the service
// packages.
var coreTransports = []string{
	"github.com/labstack/echo",
	"google.golang.org/grpc",
	"github.com/rabbitmq/amqp091-go",
	"modernc.org/sqlite",
	"github.com/charmbracelet/",
	"github.com/sirupsen/logrus",
}

// corePackages are the packages holding the graph model and the ranking
// algorithms.
var corePackages = []string{"linkgraph", "rank"}

// TestDependencyLayering verifies that no internal package imports a package
// from a higher layer.
func TestDependencyLayering(t *testing.T) {
	t.Parallel()

	dir := internalDirPath(t)
	for _, pkg := range internalPackages(t) {
		importerLayer, ok := layers[pkg]
		if !ok {
			continue
		}
		for _, imp := range importsOf(t, filepath.Join(dir, pkg)) {
			importedLayer, ok := layers[imp]
			if !ok || importerLayer >= importedLayer {
				continue
			}
			t.Errorf("layer violation: %s (layer %d) imports %s (layer %d)",
				pkg, importerLayer, imp, importedLayer)
		}
	}
}

// TestNoUnknownPackages forces every internal package into the layer map.
func TestNoUnknownPackages(t *testing.T) {
	t.Parallel()

	for _, pkg := range internalPackages(t) {
		if _, ok := layers[pkg]; !ok {
			t.Errorf("package %s has no layer assignment; add it to the layers map", pkg)
		}
	}
}

// TestCoreHasNoTransports keeps I/O stacks out of the ranking core.
func TestCoreHasNoTransports(t *testing.T) {
	t.Parallel()

	dir := internalDirPath(t)
	for _, pkg := range corePackages {
		for _, imp := range packageImports(t, filepath.Join(dir, pkg)) {
			for _, banned := range coreTransports {
				if strings.HasPrefix(imp, banned) {
					t.Errorf("core package %s imports %s", pkg, imp)
				}
			}
		}
	}
}
