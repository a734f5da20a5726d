package main

import "os"

// FeatureFlags switch the optional income and progress paths. Clicks and
// boosts are always on.
type FeatureFlags struct {
	AutoIncome      bool
	OfflineEarnings bool
	TaskProgress    bool
}

func loadFeatureFlags() FeatureFlags {
	return FeatureFlags{
		AutoIncome:      envFlag("ENABLE_AUTO_INCOME", true),
		OfflineEarnings: envFlag("ENABLE_OFFLINE_EARNINGS", true),
		TaskProgress:    envFlag("ENABLE_TASK_PROGRESS", true),
	}
}

// envFlag reads a boolean env var. Unset or unparseable values keep the
// fallback.
func envFlag(name string, fallback bool) bool {
	v, err := parseBool(os.Getenv(name))
	if err != nil {
		return fallback
	}
	return v
}
