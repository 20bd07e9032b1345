package config

import (
	"sync"

	"github.com/polis-ai/polis/pkg/models"
)

// BuiltinConfig holds all built-in configuration data: one ready-to-run
// profile per department. User YAML overrides merge on top per profile.
type BuiltinConfig struct {
	Profiles map[string]AgentProfile
}

var (
	builtinConfig     *BuiltinConfig
	builtinConfigOnce sync.Once
)

// GetBuiltinConfig returns the singleton built-in configuration (thread-safe, lazy-initialized)
func GetBuiltinConfig() *BuiltinConfig {
	builtinConfigOnce.Do(initBuiltinConfig)
	return builtinConfig
}

func initBuiltinConfig() {
	builtinConfig = &BuiltinConfig{
		Profiles: map[string]AgentProfile{
			string(AgentTypeWater):       waterProfile(),
			string(AgentTypeEngineering): engineeringProfile(),
			string(AgentTypeFire):        fireProfile(),
			string(AgentTypeSanitation):  sanitationProfile(),
			string(AgentTypeHealth):      healthProfile(),
			string(AgentTypeFinance):     financeProfile(),
		},
	}
}

func waterProfile() AgentProfile {
	return AgentProfile{
		Type:        AgentTypeWater,
		Description: "Water supply, distribution and maintenance scheduling",
		FactSets:    []string{"workers", "schedules", "budgets", "infrastructure", "projects"},
		Tools: []string{
			"check_worker_availability",
			"check_schedule_conflicts",
			"check_budget",
			"check_infrastructure_condition",
			"count_active_projects",
		},
		DefaultIntent: "maintenance_request",
		Intents: map[string]*IntentConfig{
			"schedule_shift_request": {
				Goal:      "Shift the water maintenance schedule at {location} by {requested_shift_days} days",
				RiskLevel: models.RiskLow,
				Keywords:  []string{"shift", "reschedule", "postpone", "delay", "move schedule"},
				Plans: []PlanTemplate{
					{
						Name:              "verify_and_shift",
						Steps:             []string{"check_worker_availability", "check_schedule_conflicts", "check_budget"},
						EstimatedDuration: "2 days",
						ResourcesNeeded:   []string{"maintenance_crew"},
						RiskLevel:         models.RiskLow,
					},
					{
						Name:              "minimal_shift",
						Steps:             []string{"check_worker_availability", "check_budget"},
						EstimatedDuration: "3 days",
						ResourcesNeeded:   []string{"maintenance_crew"},
						RiskLevel:         models.RiskLow,
					},
				},
			},
			"maintenance_request": {
				Goal:      "Carry out water infrastructure maintenance at {location}",
				RiskLevel: models.RiskMedium,
				Keywords:  []string{"maintenance", "repair", "inspection", "pipe", "leak", "valve"},
				Plans: []PlanTemplate{
					{
						Name:              "inspect_then_repair",
						Steps:             []string{"check_infrastructure_condition", "check_worker_availability", "check_budget"},
						EstimatedDuration: "5 days",
						ResourcesNeeded:   []string{"maintenance_crew", "repair_equipment"},
						RiskLevel:         models.RiskMedium,
					},
					{
						Name:              "staged_repair",
						Steps:             []string{"check_worker_availability", "check_budget"},
						EstimatedDuration: "8 days",
						ResourcesNeeded:   []string{"maintenance_crew"},
						RiskLevel:         models.RiskMedium,
					},
				},
			},
			"expansion_request": {
				Goal:      "Evaluate water network expansion at {location}",
				RiskLevel: models.RiskMedium,
				Keywords:  []string{"expansion", "new connection", "extend", "new line"},
				Plans: []PlanTemplate{
					{
						Name:              "capacity_review",
						Steps:             []string{"count_active_projects", "check_budget", "check_worker_availability"},
						EstimatedDuration: "30 days",
						ResourcesNeeded:   []string{"engineering_crew", "pipes"},
						RiskLevel:         models.RiskMedium,
					},
				},
			},
			"quality_incident": {
				Goal:      "Contain the water quality incident at {location}",
				RiskLevel: models.RiskHigh,
				Emergency: true,
				Keywords:  []string{"contamination", "quality", "unsafe water", "discoloration", "outbreak"},
				Plans: []PlanTemplate{
					{
						Name:              "containment",
						Steps:             []string{"check_infrastructure_condition", "check_worker_availability"},
						EstimatedDuration: "1 day",
						ResourcesNeeded:   []string{"emergency_crew", "testing_kits"},
						RiskLevel:         models.RiskHigh,
					},
				},
			},
			"status_query": {
				Goal:          "Report current water operations at {location}",
				RiskLevel:     models.RiskLow,
				Informational: true,
				Keywords:      []string{"status", "query", "report", "how many", "what is"},
				DataFacts:     []string{"schedules", "projects", "infrastructure"},
			},
		},
		Policy: &PolicyConfig{
			MaxCostWithoutReview:    2_000_000,
			SeasonRestrictedIntents: []string{"expansion_request"},
			References:              []string{"WTR-OPS-7", "CITY-PROC-2"},
		},
	}
}

func engineeringProfile() AgentProfile {
	return AgentProfile{
		Type:        AgentTypeEngineering,
		Description: "Construction, road works and structural engineering",
		FactSets:    []string{"workers", "budgets", "infrastructure", "projects", "equipment"},
		Tools: []string{
			"check_worker_availability",
			"check_budget",
			"check_infrastructure_condition",
			"count_active_projects",
			"check_equipment_status",
		},
		DefaultIntent: "inspection_request",
		Intents: map[string]*IntentConfig{
			"construction_request": {
				Goal:      "Plan the construction project at {location}",
				RiskLevel: models.RiskMedium,
				Keywords:  []string{"construction", "build", "new project", "foundation"},
				Plans: []PlanTemplate{
					{
						Name:              "full_assessment",
						Steps:             []string{"count_active_projects", "check_budget", "check_worker_availability", "check_equipment_status"},
						EstimatedDuration: "90 days",
						ResourcesNeeded:   []string{"construction_crew", "heavy_equipment"},
						RiskLevel:         models.RiskMedium,
					},
					{
						Name:              "phased_start",
						Steps:             []string{"check_budget", "check_worker_availability"},
						EstimatedDuration: "120 days",
						ResourcesNeeded:   []string{"construction_crew"},
						RiskLevel:         models.RiskMedium,
					},
				},
			},
			"road_repair_request": {
				Goal:      "Repair road damage at {location}",
				RiskLevel: models.RiskMedium,
				Keywords:  []string{"road", "pothole", "resurface", "pavement"},
				Plans: []PlanTemplate{
					{
						Name:              "assess_and_repair",
						Steps:             []string{"check_infrastructure_condition", "check_worker_availability", "check_budget"},
						EstimatedDuration: "14 days",
						ResourcesNeeded:   []string{"road_crew", "asphalt"},
						RiskLevel:         models.RiskMedium,
					},
				},
			},
			"inspection_request": {
				Goal:      "Inspect structures at {location}",
				RiskLevel: models.RiskLow,
				Keywords:  []string{"inspect", "survey", "assessment", "evaluate"},
				Plans: []PlanTemplate{
					{
						Name:              "site_inspection",
						Steps:             []string{"check_infrastructure_condition", "check_worker_availability"},
						EstimatedDuration: "3 days",
						ResourcesNeeded:   []string{"inspection_team"},
						RiskLevel:         models.RiskLow,
					},
				},
			},
			"structural_emergency": {
				Goal:      "Respond to the structural emergency at {location}",
				RiskLevel: models.RiskCritical,
				Emergency: true,
				Keywords:  []string{"collapse", "structural failure", "emergency", "unsafe building"},
				Plans: []PlanTemplate{
					{
						Name:              "emergency_response",
						Steps:             []string{"check_worker_availability", "check_equipment_status"},
						EstimatedDuration: "1 day",
						ResourcesNeeded:   []string{"emergency_crew", "heavy_equipment"},
						RiskLevel:         models.RiskCritical,
					},
				},
			},
			"status_query": {
				Goal:          "Report current engineering operations at {location}",
				RiskLevel:     models.RiskLow,
				Informational: true,
				Keywords:      []string{"status", "query", "report", "how many", "what is"},
				DataFacts:     []string{"projects", "equipment", "infrastructure"},
			},
		},
		Policy: &PolicyConfig{
			MaxCostWithoutReview:    5_000_000,
			SeasonRestrictedIntents: []string{"construction_request", "road_repair_request"},
			References:              []string{"ENG-STD-12", "CITY-PROC-2"},
		},
	}
}

func fireProfile() AgentProfile {
	return AgentProfile{
		Type:        AgentTypeFire,
		Description: "Fire and rescue response, safety inspections, equipment",
		FactSets:    []string{"workers", "equipment", "incidents", "infrastructure", "budgets"},
		Tools: []string{
			"check_worker_availability",
			"check_equipment_status",
			"check_zone_risk",
			"check_infrastructure_condition",
			"check_budget",
			"check_schedule_conflicts",
		},
		DefaultIntent: "safety_inspection_request",
		Intents: map[string]*IntentConfig{
			"emergency_response": {
				Goal:      "Dispatch emergency response to {location}",
				RiskLevel: models.RiskCritical,
				Emergency: true,
				Keywords:  []string{"fire", "rescue", "emergency", "explosion", "trapped"},
				Plans: []PlanTemplate{
					{
						Name:              "dispatch",
						Steps:             []string{"check_worker_availability", "check_equipment_status"},
						EstimatedDuration: "immediate",
						ResourcesNeeded:   []string{"fire_crew", "engines"},
						RiskLevel:         models.RiskCritical,
					},
				},
			},
			"safety_inspection_request": {
				Goal:      "Schedule fire safety inspections at {location}",
				RiskLevel: models.RiskLow,
				Keywords:  []string{"inspection", "safety audit", "compliance", "drill"},
				Plans: []PlanTemplate{
					{
						Name:              "inspection_round",
						Steps:             []string{"check_worker_availability", "check_schedule_conflicts"},
						EstimatedDuration: "7 days",
						ResourcesNeeded:   []string{"inspection_team"},
						RiskLevel:         models.RiskLow,
					},
				},
			},
			"equipment_procurement": {
				Goal:      "Procure fire equipment for {location}",
				RiskLevel: models.RiskLow,
				Keywords:  []string{"procurement", "purchase", "new equipment", "replace engine"},
				Plans: []PlanTemplate{
					{
						Name:              "procure",
						Steps:             []string{"check_equipment_status", "check_budget"},
						EstimatedDuration: "45 days",
						ResourcesNeeded:   []string{"procurement_budget"},
						RiskLevel:         models.RiskLow,
					},
				},
			},
			"hydrant_maintenance": {
				Goal:      "Maintain hydrant coverage at {location}",
				RiskLevel: models.RiskMedium,
				Keywords:  []string{"hydrant", "water pressure", "coverage"},
				Plans: []PlanTemplate{
					{
						Name:              "hydrant_round",
						Steps:             []string{"check_infrastructure_condition", "check_worker_availability", "check_budget"},
						EstimatedDuration: "10 days",
						ResourcesNeeded:   []string{"maintenance_crew"},
						RiskLevel:         models.RiskMedium,
					},
				},
			},
			"status_query": {
				Goal:          "Report fire department readiness at {location}",
				RiskLevel:     models.RiskLow,
				Informational: true,
				Keywords:      []string{"status", "query", "report", "readiness"},
				DataFacts:     []string{"equipment", "incidents", "workers"},
			},
		},
		RiskRules: []RiskRule{
			// Repeated recent incidents in a zone raise the stakes before
			// any planning happens.
			{FactSet: "incidents", Field: "severity_score", Threshold: 8, MinCount: 3, Risk: models.RiskHigh},
		},
	}
}

func sanitationProfile() AgentProfile {
	return AgentProfile{
		Type:        AgentTypeSanitation,
		Description: "Waste collection routes, bins and equipment",
		FactSets:    []string{"workers", "routes", "bins", "equipment", "budgets"},
		Tools: []string{
			"check_worker_availability",
			"check_schedule_conflicts",
			"check_bin_capacity",
			"get_active_routes",
			"check_equipment_status",
			"check_budget",
		},
		DefaultIntent: "collection_schedule_request",
		Intents: map[string]*IntentConfig{
			"route_change_request": {
				Goal:      "Rework collection routes around {location}",
				RiskLevel: models.RiskLow,
				Keywords:  []string{"route", "reroute", "coverage", "collection area"},
				Plans: []PlanTemplate{
					{
						Name:              "route_rework",
						Steps:             []string{"get_active_routes", "check_worker_availability", "check_schedule_conflicts"},
						EstimatedDuration: "7 days",
						ResourcesNeeded:   []string{"collection_crew", "trucks"},
						RiskLevel:         models.RiskLow,
					},
				},
			},
			"bin_overflow_report": {
				Goal:      "Clear overflowing bins at {location}",
				RiskLevel: models.RiskMedium,
				Keywords:  []string{"overflow", "full bins", "garbage pileup", "smell"},
				Plans: []PlanTemplate{
					{
						Name:              "extra_pickup",
						Steps:             []string{"check_bin_capacity", "check_worker_availability", "check_equipment_status"},
						EstimatedDuration: "1 day",
						ResourcesNeeded:   []string{"collection_crew", "trucks"},
						RiskLevel:         models.RiskMedium,
					},
				},
			},
			"collection_schedule_request": {
				Goal:      "Adjust the collection schedule at {location}",
				RiskLevel: models.RiskLow,
				Keywords:  []string{"schedule", "pickup time", "frequency"},
				Plans: []PlanTemplate{
					{
						Name:              "schedule_adjust",
						Steps:             []string{"check_schedule_conflicts", "check_worker_availability"},
						EstimatedDuration: "3 days",
						ResourcesNeeded:   []string{"collection_crew"},
						RiskLevel:         models.RiskLow,
					},
				},
			},
			"equipment_request": {
				Goal:      "Acquire sanitation equipment for {location}",
				RiskLevel: models.RiskLow,
				Keywords:  []string{"truck", "compactor", "equipment"},
				Plans: []PlanTemplate{
					{
						Name:              "acquire",
						Steps:             []string{"check_equipment_status", "check_budget"},
						EstimatedDuration: "30 days",
						ResourcesNeeded:   []string{"procurement_budget"},
						RiskLevel:         models.RiskLow,
					},
				},
			},
			"status_query": {
				Goal:          "Report sanitation operations at {location}",
				RiskLevel:     models.RiskLow,
				Informational: true,
				Keywords:      []string{"status", "query", "report"},
				DataFacts:     []string{"routes", "bins", "equipment"},
			},
		},
		RiskRules: []RiskRule{
			// Many nearly-full bins mean an imminent public health problem.
			{FactSet: "bins", Field: "fill_percent", Threshold: 95, MinCount: 6, Risk: models.RiskCritical},
			{FactSet: "bins", Field: "fill_percent", Threshold: 90, MinCount: 10, Risk: models.RiskHigh},
		},
	}
}

func healthProfile() AgentProfile {
	return AgentProfile{
		Type:        AgentTypeHealth,
		Description: "Public health: supplies, campaigns and facilities",
		FactSets:    []string{"supplies", "campaigns", "facilities", "workers", "budgets"},
		Tools: []string{
			"get_supplies",
			"get_campaigns",
			"get_facilities",
			"check_worker_availability",
			"check_budget",
		},
		DefaultIntent: "status_query",
		Intents: map[string]*IntentConfig{
			"status_query": {
				Goal:          "Report public health status at {location}",
				RiskLevel:     models.RiskLow,
				Informational: true,
				Keywords:      []string{"status", "query", "supplies", "what", "how many", "stock"},
				DataFacts:     []string{"supplies", "campaigns", "facilities"},
			},
			"vaccination_campaign_request": {
				Goal:      "Run a vaccination campaign at {location}",
				RiskLevel: models.RiskMedium,
				Keywords:  []string{"vaccination", "campaign", "immunization", "drive"},
				Plans: []PlanTemplate{
					{
						Name:              "campaign_setup",
						Steps:             []string{"get_campaigns", "get_supplies", "check_worker_availability", "check_budget"},
						EstimatedDuration: "21 days",
						ResourcesNeeded:   []string{"medical_staff", "vaccines"},
						RiskLevel:         models.RiskMedium,
					},
					{
						Name:              "reduced_campaign",
						Steps:             []string{"get_supplies", "check_worker_availability"},
						EstimatedDuration: "30 days",
						ResourcesNeeded:   []string{"medical_staff"},
						RiskLevel:         models.RiskMedium,
					},
				},
			},
			"supply_procurement": {
				Goal:      "Replenish medical supplies for {location}",
				RiskLevel: models.RiskLow,
				Keywords:  []string{"procurement", "restock", "order", "supplies low"},
				Plans: []PlanTemplate{
					{
						Name:              "restock",
						Steps:             []string{"get_supplies", "check_budget"},
						EstimatedDuration: "14 days",
						ResourcesNeeded:   []string{"procurement_budget"},
						RiskLevel:         models.RiskLow,
					},
				},
			},
			"disease_outbreak_response": {
				Goal:      "Contain the outbreak reported at {location}",
				RiskLevel: models.RiskCritical,
				Emergency: true,
				Keywords:  []string{"outbreak", "epidemic", "infection cluster", "quarantine"},
				Plans: []PlanTemplate{
					{
						Name:              "containment",
						Steps:             []string{"get_supplies", "get_facilities", "check_worker_availability"},
						EstimatedDuration: "2 days",
						ResourcesNeeded:   []string{"medical_staff", "isolation_beds"},
						RiskLevel:         models.RiskCritical,
					},
				},
			},
			"facility_inspection": {
				Goal:      "Inspect health facilities at {location}",
				RiskLevel: models.RiskLow,
				Keywords:  []string{"facility", "clinic", "inspection"},
				Plans: []PlanTemplate{
					{
						Name:              "facility_round",
						Steps:             []string{"get_facilities", "check_worker_availability"},
						EstimatedDuration: "5 days",
						ResourcesNeeded:   []string{"inspection_team"},
						RiskLevel:         models.RiskLow,
					},
				},
			},
		},
	}
}

func financeProfile() AgentProfile {
	return AgentProfile{
		Type:        AgentTypeFinance,
		Description: "Budget reviews, allocations and audits",
		FactSets:    []string{"budgets", "projects"},
		Tools: []string{
			"check_budget",
			"count_active_projects",
		},
		DefaultIntent: "budget_review_request",
		Intents: map[string]*IntentConfig{
			"budget_review_request": {
				Goal:      "Review budget position for {location}",
				RiskLevel: models.RiskLow,
				Keywords:  []string{"review", "budget position", "utilisation"},
				Plans: []PlanTemplate{
					{
						Name:              "review",
						Steps:             []string{"check_budget", "count_active_projects"},
						EstimatedDuration: "7 days",
						ResourcesNeeded:   []string{"finance_analyst"},
						RiskLevel:         models.RiskLow,
					},
				},
			},
			"allocation_request": {
				Goal:      "Evaluate the allocation request for {location}",
				RiskLevel: models.RiskMedium,
				Keywords:  []string{"allocate", "funding", "grant", "transfer"},
				Plans: []PlanTemplate{
					{
						Name:              "allocation_check",
						Steps:             []string{"check_budget"},
						EstimatedDuration: "10 days",
						ResourcesNeeded:   []string{"finance_analyst"},
						RiskLevel:         models.RiskMedium,
					},
				},
			},
			"audit_request": {
				Goal:      "Audit spending for {location}",
				RiskLevel: models.RiskLow,
				Keywords:  []string{"audit", "irregularity", "compliance"},
				Plans: []PlanTemplate{
					{
						Name:              "audit",
						Steps:             []string{"check_budget", "count_active_projects"},
						EstimatedDuration: "30 days",
						ResourcesNeeded:   []string{"audit_team"},
						RiskLevel:         models.RiskLow,
					},
				},
			},
			"status_query": {
				Goal:          "Report budget status for {location}",
				RiskLevel:     models.RiskLow,
				Informational: true,
				Keywords:      []string{"status", "query", "remaining", "spent"},
				DataFacts:     []string{"budgets", "projects"},
			},
		},
	}
}
