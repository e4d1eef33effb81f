// Package backend holds the three strategies that execute a step script: a local
// child process, a container on the local docker daemon and a container on a
// remote docker daemon reached over ssh.
package backend

import (
	"context"
	"maps"
	"path/filepath"
	"slices"
)

// ScriptKind tells the harness how to run the step script.
type ScriptKind string

const (
	ScriptPython ScriptKind = "python"
	ScriptShell  ScriptKind = "shell"
)

// KindOf derives the script kind from the script's extension.
func KindOf(script string) ScriptKind {
	if filepath.Ext(script) == ".py" {
		return ScriptPython
	}
	return ScriptShell
}

// In-container locations of the step trees.
const (
	ContainerSourceRoot = "/tmp/agent_source"
	ContainerCacheDir   = "/tmp/step_cache"
	ContainerOutputDir  = "/tmp/step_output"
)

// ContainerRequiredOutput returns where a required step's output directory appears
// inside a container.
func ContainerRequiredOutput(hostOutputDir string) string {
	return "/tmp/required_step_" + filepath.Base(hostOutputDir)
}

// Invocation is everything a backend needs to run one step.
type Invocation struct {
	StepID       string
	IsolatedRoot string
	CacheDir     string
	OutputDir    string
	// Harness and Script are paths relative to the isolated root.
	Harness string
	Script  string
	User    string
	// RequiredOutputs maps environment variable names to the host output
	// directories of required steps.
	RequiredOutputs map[string]string
	// Env holds declared variables plus the CI flag; keys never collide with RequiredOutputs.
	Env map[string]string
	// Container is nil for steps that run on the host.
	Container *ContainerSpec
}

// ContainerSpec describes the container a step runs in.
type ContainerSpec struct {
	Name      string
	BaseImage string
	Platform  string
	// BaseImageTarball is the saved image of the base environment step, loaded when
	// BaseImage is not known to the daemon. Empty when the base is an external image.
	BaseImageTarball string
	// ResultImage is set for environment steps: the container is committed under
	// this name and saved into the output directory.
	ResultImage string
}

// Backend executes a step invocation.
type Backend interface {
	Execute(ctx context.Context, inv Invocation) error
}

// HarnessArgs is the harness command line: env bash <harness> <script> <cache> <output> <kind>.
func HarnessArgs(inv Invocation, cacheDir, outputDir string) []string {
	return []string{
		"env",
		"bash",
		inv.Harness,
		inv.Script,
		cacheDir,
		outputDir,
		string(KindOf(inv.Script)),
	}
}

// StepEnv merges required-step locations, as resolved by locate, with the declared variables.
func StepEnv(inv Invocation, locate func(hostOutputDir string) string) map[string]string {
	env := make(map[string]string, len(inv.RequiredOutputs)+len(inv.Env))
	for name, dir := range inv.RequiredOutputs {
		env[name] = locate(dir)
	}
	maps.Copy(env, inv.Env)
	return env
}

func sortedPairs(env map[string]string) []string {
	keys := slices.Sorted(maps.Keys(env))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
