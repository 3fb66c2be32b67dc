package health

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNewMonitor(t *testing.T) {
	monitor := NewMonitor()

	if monitor == nil {
		t.Fatal("NewMonitor() returned nil")
	}

	if monitor.statuses == nil {
		t.Error("NewMonitor() should initialize statuses map")
	}

	if monitor.Count() != 0 {
		t.Errorf("New monitor should have 0 components, got %d", monitor.Count())
	}
}

func TestMonitor_Update(t *testing.T) {
	monitor := NewMonitor()

	status := Status{
		Component: "deployer",
		Status:    "healthy",
		Message:   "test message",
	}

	monitor.Update("deployer", status)

	retrieved, exists := monitor.Get("deployer")
	if !exists {
		t.Error("Component should exist after update")
	}

	if retrieved.Component != "deployer" {
		t.Errorf("Expected component name 'deployer', got %s", retrieved.Component)
	}

	if retrieved.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got %s", retrieved.Status)
	}

	if retrieved.Timestamp.IsZero() {
		t.Error("Update should set timestamp if not provided")
	}
}

func TestMonitor_UpdateWithDifferentName(t *testing.T) {
	monitor := NewMonitor()

	// Update with a status that has a different component name
	status := Status{
		Component: "wrong-name",
		Status:    "healthy",
		Message:   "test message",
	}

	monitor.Update("correct-name", status)

	retrieved, exists := monitor.Get("correct-name")
	if !exists {
		t.Error("Component should exist with correct name")
	}

	// The component name should be corrected by Update
	if retrieved.Component != "correct-name" {
		t.Errorf("Expected component name 'correct-name', got %s", retrieved.Component)
	}
}

func TestMonitor_UpdateConvenienceMethods(t *testing.T) {
	monitor := NewMonitor()

	monitor.UpdateHealthy("generation-store", "store directory writable")
	healthyStatus, exists := monitor.Get("generation-store")
	if !exists || !healthyStatus.IsHealthy() {
		t.Error("UpdateHealthy should set component as healthy")
	}
	if healthyStatus.Message != "store directory writable" {
		t.Errorf("Expected message 'store directory writable', got %s", healthyStatus.Message)
	}

	monitor.UpdateUnhealthy("provisioning-engine", "describe calls failing")
	unhealthyStatus, exists := monitor.Get("provisioning-engine")
	if !exists || !unhealthyStatus.IsUnhealthy() {
		t.Error("UpdateUnhealthy should set component as unhealthy")
	}

	monitor.UpdateDegraded("pricing", "catalog lookups throttled")
	degradedStatus, exists := monitor.Get("pricing")
	if !exists || !degradedStatus.IsDegraded() {
		t.Error("UpdateDegraded should set component as degraded")
	}
}

func TestMonitor_Get(t *testing.T) {
	monitor := NewMonitor()

	// Test getting non-existent component
	_, exists := monitor.Get("non-existent")
	if exists {
		t.Error("Getting non-existent component should return false")
	}

	monitor.UpdateHealthy("deployer", "message")
	status, exists := monitor.Get("deployer")
	if !exists {
		t.Error("Getting existing component should return true")
	}
	if status.Component != "deployer" {
		t.Errorf("Expected component 'deployer', got %s", status.Component)
	}
}

func TestMonitor_GetAll(t *testing.T) {
	monitor := NewMonitor()

	all := monitor.GetAll()
	if len(all) != 0 {
		t.Errorf("Empty monitor should return empty map, got %d items", len(all))
	}

	monitor.UpdateHealthy("deployer", "msg1")
	monitor.UpdateUnhealthy("provisioning-engine", "msg2")
	monitor.UpdateDegraded("pricing", "msg3")

	all = monitor.GetAll()
	if len(all) != 3 {
		t.Errorf("Expected 3 components, got %d", len(all))
	}

	for _, name := range []string{"deployer", "provisioning-engine", "pricing"} {
		if _, exists := all[name]; !exists {
			t.Errorf("Component %s should be in GetAll result", name)
		}
	}

	// Test that returned map is a copy (modifying it shouldn't affect monitor)
	all["deployer"] = Status{Component: "modified"}
	original, _ := monitor.Get("deployer")
	if original.Component == "modified" {
		t.Error("GetAll should return a copy, not reference to internal data")
	}
}

func TestMonitor_Remove(t *testing.T) {
	monitor := NewMonitor()

	// Remove from empty monitor (should not panic)
	monitor.Remove("non-existent")

	monitor.UpdateHealthy("deployer", "message")
	if monitor.Count() != 1 {
		t.Error("Should have 1 component after adding")
	}

	monitor.Remove("deployer")
	if monitor.Count() != 0 {
		t.Error("Should have 0 components after removing")
	}

	_, exists := monitor.Get("deployer")
	if exists {
		t.Error("Component should not exist after removal")
	}
}

func TestMonitor_RemoveDropsCheck(t *testing.T) {
	monitor := NewMonitor()

	monitor.Register("generation-store", func(context.Context) Status {
		return NewHealthy("generation-store", "ok")
	})
	monitor.RunChecks(context.Background(), "foundry")
	if monitor.Count() != 1 {
		t.Fatalf("Expected 1 component after first run, got %d", monitor.Count())
	}

	monitor.Remove("generation-store")
	monitor.RunChecks(context.Background(), "foundry")
	if monitor.Count() != 0 {
		t.Errorf("Removed component should not be re-added by its check, got %d", monitor.Count())
	}
}

func TestMonitor_RunChecks(t *testing.T) {
	monitor := NewMonitor()

	calls := 0
	monitor.Register("generation-store", func(context.Context) Status {
		calls++
		return NewHealthy("generation-store", "store directory writable")
	})
	monitor.Register("provisioning-engine", func(context.Context) Status {
		return FromError("provisioning-engine", fmt.Errorf("access denied"))
	})

	aggregate := monitor.RunChecks(context.Background(), "foundry")

	if calls != 1 {
		t.Errorf("Expected check to run once, ran %d times", calls)
	}
	if !aggregate.IsUnhealthy() {
		t.Errorf("Expected unhealthy aggregate, got %s", aggregate.Status)
	}
	if aggregate.Component != "foundry" {
		t.Errorf("Expected component 'foundry', got %s", aggregate.Component)
	}
	if len(aggregate.SubStatuses) != 2 {
		t.Errorf("Expected 2 sub-statuses, got %d", len(aggregate.SubStatuses))
	}

	stored, exists := monitor.Get("generation-store")
	if !exists || !stored.IsHealthy() {
		t.Error("RunChecks should record each check result")
	}
}

func TestMonitor_RunChecksIncludesPushedStatuses(t *testing.T) {
	monitor := NewMonitor()

	monitor.UpdateDegraded("pricing", "catalog lookups throttled")
	monitor.Register("deployer", func(context.Context) Status {
		return NewHealthy("deployer", "ok")
	})

	aggregate := monitor.RunChecks(context.Background(), "foundry")

	if !aggregate.IsDegraded() {
		t.Errorf("Pushed degraded status should surface in aggregate, got %s", aggregate.Status)
	}
	if len(aggregate.SubStatuses) != 2 {
		t.Errorf("Expected 2 sub-statuses, got %d", len(aggregate.SubStatuses))
	}
}

func TestMonitor_AggregateHealth(t *testing.T) {
	monitor := NewMonitor()

	// Test empty monitor
	aggregate := monitor.AggregateHealth("system")
	if !aggregate.IsHealthy() {
		t.Error("Empty monitor should aggregate as healthy")
	}
	if aggregate.Component != "system" {
		t.Errorf("Expected component 'system', got %s", aggregate.Component)
	}

	monitor.UpdateHealthy("comp1", "msg1")
	monitor.UpdateHealthy("comp2", "msg2")
	aggregate = monitor.AggregateHealth("system")
	if !aggregate.IsHealthy() {
		t.Error("All healthy components should aggregate as healthy")
	}

	monitor.UpdateUnhealthy("comp3", "error")
	aggregate = monitor.AggregateHealth("system")
	if !aggregate.IsUnhealthy() {
		t.Error("Should aggregate as unhealthy when any component is unhealthy")
	}

	monitor.Remove("comp3")
	monitor.UpdateDegraded("comp4", "slow")
	aggregate = monitor.AggregateHealth("system")
	if !aggregate.IsDegraded() {
		t.Error("Should aggregate as degraded when no unhealthy but some degraded")
	}
}

func TestMonitor_ListComponents(t *testing.T) {
	monitor := NewMonitor()

	components := monitor.ListComponents()
	if len(components) != 0 {
		t.Errorf("Empty monitor should return empty list, got %d items", len(components))
	}

	monitor.UpdateHealthy("comp1", "msg1")
	monitor.UpdateUnhealthy("comp2", "msg2")

	components = monitor.ListComponents()
	if len(components) != 2 {
		t.Errorf("Expected 2 components, got %d", len(components))
	}

	componentMap := make(map[string]bool)
	for _, comp := range components {
		componentMap[comp] = true
	}

	for _, expected := range []string{"comp1", "comp2"} {
		if !componentMap[expected] {
			t.Errorf("Component %s should be in list", expected)
		}
	}
}

func TestMonitor_Count(t *testing.T) {
	monitor := NewMonitor()

	if monitor.Count() != 0 {
		t.Errorf("New monitor should have count 0, got %d", monitor.Count())
	}

	monitor.UpdateHealthy("comp1", "msg")
	if monitor.Count() != 1 {
		t.Errorf("Expected count 1, got %d", monitor.Count())
	}

	monitor.UpdateHealthy("comp2", "msg")
	if monitor.Count() != 2 {
		t.Errorf("Expected count 2, got %d", monitor.Count())
	}

	monitor.Remove("comp1")
	if monitor.Count() != 1 {
		t.Errorf("Expected count 1 after removal, got %d", monitor.Count())
	}
}

func TestMonitor_Uptime(t *testing.T) {
	monitor := NewMonitor()

	if monitor.Uptime() < 0 {
		t.Error("Uptime should never be negative")
	}

	time.Sleep(time.Millisecond)
	if monitor.Uptime() <= 0 {
		t.Error("Uptime should grow")
	}
}

func TestMonitor_ConcurrentAccess(t *testing.T) {
	monitor := NewMonitor()
	numGoroutines := 10
	numOperationsPerGoroutine := 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(_ int) {
			defer wg.Done()

			for j := 0; j < numOperationsPerGoroutine; j++ {
				componentName := "comp"

				// Mix of operations
				switch j % 5 {
				case 0:
					monitor.UpdateHealthy(componentName, "healthy")
				case 1:
					monitor.UpdateUnhealthy(componentName, "unhealthy")
				case 2:
					_, _ = monitor.Get(componentName)
				case 3:
					_ = monitor.GetAll()
				case 4:
					_ = monitor.RunChecks(context.Background(), "system")
				}
			}
		}(i)
	}

	wg.Wait()

	// Verify monitor is still functional
	monitor.UpdateHealthy("final-test", "test message")
	status, exists := monitor.Get("final-test")
	if !exists || status.Component != "final-test" {
		t.Error("Monitor should still be functional after concurrent access")
	}
}

func TestMonitor_ConcurrentAggregation(t *testing.T) {
	monitor := NewMonitor()
	numGoroutines := 5

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	// Start goroutines that continuously aggregate while others modify
	for i := 0; i < numGoroutines; i++ {
		if i == 0 {
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					_ = monitor.AggregateHealth("system")
					time.Sleep(time.Microsecond)
				}
			}()
		} else {
			go func(_ int) {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					componentName := "comp"
					if j%2 == 0 {
						monitor.UpdateHealthy(componentName, "msg")
					} else {
						monitor.Remove(componentName)
					}
					time.Sleep(time.Microsecond)
				}
			}(i)
		}
	}

	wg.Wait()

	// Final aggregation should work without panic
	aggregate := monitor.AggregateHealth("final-system")
	if aggregate.Component != "final-system" {
		t.Error("Final aggregation should work correctly")
	}
}
