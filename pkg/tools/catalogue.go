package tools

import (
	"context"
	"math"

	"github.com/polis-ai/polis/pkg/datasource"
	"github.com/polis-ai/polis/pkg/models"
)

const maxSample = 5

// NewRegistry returns the full builtin catalogue. Agent profiles take
// subsets of it; profile validation rejects names not listed here.
func NewRegistry() *Registry {
	catalogue := []Tool{
		{Name: "check_worker_availability", Description: "Count available crew at a location, optionally by skill", Run: checkWorkerAvailability},
		{Name: "check_schedule_conflicts", Description: "Find scheduled work overlapping a requested window", Run: checkScheduleConflicts},
		{Name: "check_budget", Description: "Report department budget utilisation and remaining funds", Run: checkBudget},
		{Name: "check_infrastructure_condition", Description: "Report the worst asset condition at a location", Run: checkInfrastructureCondition},
		{Name: "count_active_projects", Description: "Count active projects at a location", Run: countActiveProjects},
		{Name: "check_equipment_status", Description: "Report department equipment operational state", Run: checkEquipmentStatus},
		{Name: "check_zone_risk", Description: "Grade a location by open incident severity", Run: checkZoneRisk},
		{Name: "check_bin_capacity", Description: "Report bin fill levels for a collection zone", Run: checkBinCapacity},
		{Name: "get_active_routes", Description: "List active collection routes for a zone", Run: getActiveRoutes},
		{Name: "get_supplies", Description: "List supply stock at a location", Run: getSupplies},
		{Name: "get_campaigns", Description: "List public campaigns at a location", Run: getCampaigns},
		{Name: "get_facilities", Description: "Report facility capacity and utilisation at a location", Run: getFacilities},
	}

	tools := make(map[string]Tool, len(catalogue))
	for _, t := range catalogue {
		tools[t.Name] = t
	}
	return newRegistry(tools)
}

func checkWorkerAvailability(ctx context.Context, src datasource.Source, p Params) models.ToolResult {
	records, err := src.Workers(ctx, datasource.Filter{Location: p.Location, Department: p.AgentType})
	if err != nil {
		return errResult("workers query failed: %v", err)
	}

	available := 0
	for _, rec := range records {
		if p.Skill != "" && asString(rec["skill"]) != p.Skill {
			continue
		}
		if asBool(rec["available"]) {
			available++
		}
	}

	required := p.RequiredWorkers
	if required < 1 {
		required = 1
	}
	return models.ToolResult{
		"total_workers":     len(records),
		"available_workers": available,
		"required_workers":  required,
		"sufficient":        available >= required,
		"sample":            sampleRecords(records, maxSample),
	}
}

func checkScheduleConflicts(ctx context.Context, src datasource.Source, p Params) models.ToolResult {
	// Conflicts cross department lines, so the query is location-only.
	records, err := src.Schedules(ctx, datasource.Filter{Location: p.Location})
	if err != nil {
		return errResult("schedules query failed: %v", err)
	}

	start, haveWindow := asDate(p.StartDate)
	end := start
	if haveWindow {
		if e, ok := asDate(p.EndDate); ok {
			end = e
		} else if p.DurationDays > 0 {
			end = start.AddDate(0, 0, p.DurationDays)
		}
	}

	var conflicts []datasource.Record
	if haveWindow {
		for _, rec := range records {
			s, okS := asDate(rec["starts_on"])
			e, okE := asDate(rec["ends_on"])
			if !okS || !okE {
				continue
			}
			if !start.After(e) && !s.After(end) {
				conflicts = append(conflicts, rec)
			}
		}
	}

	return models.ToolResult{
		"scheduled_tasks": len(records),
		"conflict_count":  len(conflicts),
		"has_conflicts":   len(conflicts) > 0,
		"conflicts":       sampleRecords(conflicts, maxSample),
	}
}

func checkBudget(ctx context.Context, src datasource.Source, p Params) models.ToolResult {
	records, err := src.Budgets(ctx, datasource.Filter{Department: p.AgentType})
	if err != nil {
		return errResult("budgets query failed: %v", err)
	}

	var allocated, spent float64
	for _, rec := range records {
		if a, ok := asFloat(rec["allocated"]); ok {
			allocated += a
		}
		if s, ok := asFloat(rec["spent"]); ok {
			spent += s
		}
	}
	remaining := allocated - spent

	utilization := 0.0
	if allocated > 0 {
		utilization = math.Round(spent / allocated * 100)
	}

	result := models.ToolResult{
		"allocated":           allocated,
		"spent":               spent,
		"remaining":           remaining,
		"utilization_percent": utilization,
		"budget_lines":        len(records),
	}
	if p.EstimatedCost > 0 {
		result["estimated_cost"] = p.EstimatedCost
		result["sufficient_funds"] = remaining >= p.EstimatedCost
	}
	return result
}

// conditionRank orders asset conditions from best to worst.
var conditionRank = map[string]int{"good": 0, "fair": 1, "poor": 2, "critical": 3}

func checkInfrastructureCondition(ctx context.Context, src datasource.Source, p Params) models.ToolResult {
	records, err := src.Infrastructure(ctx, datasource.Filter{Location: p.Location})
	if err != nil {
		return errResult("infrastructure query failed: %v", err)
	}

	worst := "good"
	if len(records) == 0 {
		worst = "unknown"
	}
	for _, rec := range records {
		cond := asString(rec["condition"])
		if conditionRank[cond] > conditionRank[worst] {
			worst = cond
		}
	}

	return models.ToolResult{
		"assets_checked":  len(records),
		"worst_condition": worst,
		"degraded":        worst == "poor" || worst == "critical",
		"sample":          sampleRecords(records, maxSample),
	}
}

func countActiveProjects(ctx context.Context, src datasource.Source, p Params) models.ToolResult {
	records, err := src.Projects(ctx, datasource.Filter{Location: p.Location})
	if err != nil {
		return errResult("projects query failed: %v", err)
	}

	var active []datasource.Record
	for _, rec := range records {
		if asString(rec["status"]) == "active" {
			active = append(active, rec)
		}
	}
	return models.ToolResult{
		"active_projects": len(active),
		"total_projects":  len(records),
		"sample":          sampleRecords(active, maxSample),
	}
}

func checkEquipmentStatus(ctx context.Context, src datasource.Source, p Params) models.ToolResult {
	records, err := src.Equipment(ctx, datasource.Filter{Department: p.AgentType})
	if err != nil {
		return errResult("equipment query failed: %v", err)
	}

	operational, maintenance := 0, 0
	for _, rec := range records {
		switch asString(rec["status"]) {
		case "operational":
			operational++
		case "maintenance":
			maintenance++
		}
	}
	return models.ToolResult{
		"total_units":     len(records),
		"operational":     operational,
		"in_maintenance":  maintenance,
		"all_operational": len(records) > 0 && operational == len(records),
	}
}

func checkZoneRisk(ctx context.Context, src datasource.Source, p Params) models.ToolResult {
	records, err := src.Incidents(ctx, datasource.Filter{Location: p.Location})
	if err != nil {
		return errResult("incidents query failed: %v", err)
	}

	open := 0
	maxSeverity := 0
	for _, rec := range records {
		if asString(rec["status"]) == "closed" {
			continue
		}
		open++
		if s, ok := asInt(rec["severity_score"]); ok && s > maxSeverity {
			maxSeverity = s
		}
	}

	risk := "low"
	switch {
	case maxSeverity >= 8:
		risk = "critical"
	case maxSeverity >= 6:
		risk = "high"
	case maxSeverity >= 3:
		risk = "medium"
	}

	return models.ToolResult{
		"open_incidents":     open,
		"max_severity_score": maxSeverity,
		"risk_level":         risk,
	}
}

func checkBinCapacity(ctx context.Context, src datasource.Source, p Params) models.ToolResult {
	records, err := src.Bins(ctx, datasource.Filter{Location: p.Location})
	if err != nil {
		return errResult("bins query failed: %v", err)
	}

	sum, maxFill, over90 := 0, 0, 0
	for _, rec := range records {
		fill, ok := asInt(rec["fill_percent"])
		if !ok {
			continue
		}
		sum += fill
		if fill > maxFill {
			maxFill = fill
		}
		if fill >= 90 {
			over90++
		}
	}
	avg := 0
	if len(records) > 0 {
		avg = sum / len(records)
	}

	return models.ToolResult{
		"bins_checked":     len(records),
		"avg_fill_percent": avg,
		"max_fill_percent": maxFill,
		"bins_over_90":     over90,
		"sample":           sampleRecords(records, maxSample),
	}
}

func getActiveRoutes(ctx context.Context, src datasource.Source, p Params) models.ToolResult {
	records, err := src.Routes(ctx, datasource.Filter{Location: p.Location})
	if err != nil {
		return errResult("routes query failed: %v", err)
	}

	var active []datasource.Record
	for _, rec := range records {
		if asString(rec["status"]) == "active" {
			active = append(active, rec)
		}
	}
	return models.ToolResult{
		"active_routes": len(active),
		"total_routes":  len(records),
		"routes":        sampleRecords(active, maxSample),
	}
}

func getSupplies(ctx context.Context, src datasource.Source, p Params) models.ToolResult {
	records, err := src.Supplies(ctx, datasource.Filter{Location: p.Location})
	if err != nil {
		return errResult("supplies query failed: %v", err)
	}

	total := 0
	for _, rec := range records {
		if q, ok := asInt(rec["quantity"]); ok {
			total += q
		}
	}
	return models.ToolResult{
		"items":          len(records),
		"total_quantity": total,
		"supplies":       sampleRecords(records, maxSample),
	}
}

func getCampaigns(ctx context.Context, src datasource.Source, p Params) models.ToolResult {
	records, err := src.Campaigns(ctx, datasource.Filter{Location: p.Location})
	if err != nil {
		return errResult("campaigns query failed: %v", err)
	}

	active := 0
	for _, rec := range records {
		if asString(rec["status"]) == "active" {
			active++
		}
	}
	return models.ToolResult{
		"campaigns":        len(records),
		"active_campaigns": active,
		"sample":           sampleRecords(records, maxSample),
	}
}

func getFacilities(ctx context.Context, src datasource.Source, p Params) models.ToolResult {
	records, err := src.Facilities(ctx, datasource.Filter{Location: p.Location})
	if err != nil {
		return errResult("facilities query failed: %v", err)
	}

	sum, maxUtil := 0, 0
	for _, rec := range records {
		util, ok := asInt(rec["utilization_percent"])
		if !ok {
			continue
		}
		sum += util
		if util > maxUtil {
			maxUtil = util
		}
	}
	avg := 0
	if len(records) > 0 {
		avg = sum / len(records)
	}

	return models.ToolResult{
		"facilities":              len(records),
		"avg_utilization_percent": avg,
		"max_utilization_percent": maxUtil,
		"sample":                  sampleRecords(records, maxSample),
	}
}
