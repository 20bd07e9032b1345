package datasource

// fixtures returns the builtin city dataset the memory store serves: a small
// but internally consistent snapshot across every fact set. Locations used
// throughout: ward_3, ward_12, downtown, riverside, old_town; collection
// zones: zone_a, zone_b.
//
// The data is tuned so that default feasibility rules pass in ward_3,
// ward_12 and downtown, while old_town (poor infrastructure) and riverside
// (elevated incident severity) exercise the deny and escalate paths.
func fixtures() map[string][]Record {
	return map[string][]Record{
		FactWorkers: {
			{"id": int64(1), "department": "water_dept", "name": "A. Rivera", "skill": "pipefitting", "location": "ward_3", "available": true, "shift": "day"},
			{"id": int64(2), "department": "water_dept", "name": "B. Okafor", "skill": "pipefitting", "location": "ward_3", "available": true, "shift": "night"},
			{"id": int64(3), "department": "water_dept", "name": "C. Lindqvist", "skill": "inspection", "location": "ward_3", "available": true, "shift": "day"},
			{"id": int64(4), "department": "water_dept", "name": "D. Mwangi", "skill": "pipefitting", "location": "ward_12", "available": true, "shift": "day"},
			{"id": int64(5), "department": "water_dept", "name": "E. Park", "skill": "electrical", "location": "ward_12", "available": true, "shift": "day"},
			{"id": int64(6), "department": "water_dept", "name": "F. Haddad", "skill": "pipefitting", "location": "downtown", "available": false, "shift": "day"},
			{"id": int64(7), "department": "engineering_dept", "name": "G. Novak", "skill": "construction", "location": "ward_3", "available": true, "shift": "day"},
			{"id": int64(8), "department": "engineering_dept", "name": "H. Diallo", "skill": "construction", "location": "ward_3", "available": true, "shift": "day"},
			{"id": int64(9), "department": "engineering_dept", "name": "I. Suzuki", "skill": "inspection", "location": "downtown", "available": true, "shift": "day"},
			{"id": int64(10), "department": "engineering_dept", "name": "J. Costa", "skill": "construction", "location": "riverside", "available": true, "shift": "day"},
			{"id": int64(11), "department": "fire_dept", "name": "K. Ahmed", "skill": "firefighting", "location": "downtown", "available": true, "shift": "day"},
			{"id": int64(12), "department": "fire_dept", "name": "L. Moreau", "skill": "firefighting", "location": "downtown", "available": true, "shift": "night"},
			{"id": int64(13), "department": "fire_dept", "name": "M. Petrov", "skill": "inspection", "location": "riverside", "available": true, "shift": "day"},
			{"id": int64(14), "department": "sanitation_dept", "name": "N. Garcia", "skill": "driving", "location": "zone_a", "available": true, "shift": "day"},
			{"id": int64(15), "department": "sanitation_dept", "name": "O. Eze", "skill": "driving", "location": "zone_b", "available": true, "shift": "day"},
			{"id": int64(16), "department": "health_dept", "name": "P. Larsen", "skill": "nursing", "location": "ward_12", "available": true, "shift": "day"},
			{"id": int64(17), "department": "health_dept", "name": "Q. Banda", "skill": "nursing", "location": "downtown", "available": true, "shift": "day"},
			{"id": int64(18), "department": "finance_dept", "name": "R. Schmidt", "skill": "accounting", "location": "downtown", "available": true, "shift": "day"},
		},
		FactSchedules: {
			{"id": int64(1), "department": "water_dept", "task": "main flush", "location": "ward_3", "starts_on": "2026-09-01", "ends_on": "2026-09-03", "status": "planned"},
			{"id": int64(2), "department": "water_dept", "task": "valve replacement", "location": "ward_12", "starts_on": "2026-09-10", "ends_on": "2026-09-12", "status": "planned"},
			{"id": int64(3), "department": "engineering_dept", "task": "road resurfacing", "location": "downtown", "starts_on": "2026-09-05", "ends_on": "2026-09-20", "status": "active"},
			{"id": int64(4), "department": "sanitation_dept", "task": "route sweep", "location": "zone_a", "starts_on": "2026-08-28", "ends_on": "2026-08-28", "status": "planned"},
			{"id": int64(5), "department": "health_dept", "task": "clinic audit", "location": "ward_12", "starts_on": "2026-09-15", "ends_on": "2026-09-16", "status": "planned"},
		},
		FactBudgets: {
			{"id": int64(1), "department": "water_dept", "category": "maintenance", "fiscal_year": int64(2026), "allocated": 2_000_000.0, "spent": 600_000.0},
			{"id": int64(2), "department": "water_dept", "category": "capital", "fiscal_year": int64(2026), "allocated": 5_000_000.0, "spent": 1_500_000.0},
			{"id": int64(3), "department": "engineering_dept", "category": "construction", "fiscal_year": int64(2026), "allocated": 8_000_000.0, "spent": 3_200_000.0},
			{"id": int64(4), "department": "fire_dept", "category": "operations", "fiscal_year": int64(2026), "allocated": 1_500_000.0, "spent": 400_000.0},
			{"id": int64(5), "department": "sanitation_dept", "category": "operations", "fiscal_year": int64(2026), "allocated": 1_200_000.0, "spent": 500_000.0},
			{"id": int64(6), "department": "health_dept", "category": "programs", "fiscal_year": int64(2026), "allocated": 3_000_000.0, "spent": 900_000.0},
			{"id": int64(7), "department": "finance_dept", "category": "reserve", "fiscal_year": int64(2026), "allocated": 10_000_000.0, "spent": 0.0},
		},
		FactInfrastructure: {
			{"id": int64(1), "asset_type": "pipe", "location": "ward_3", "condition": "good", "last_inspected": "2026-06-14"},
			{"id": int64(2), "asset_type": "pipe", "location": "ward_12", "condition": "fair", "last_inspected": "2026-05-02"},
			{"id": int64(3), "asset_type": "pipe", "location": "old_town", "condition": "poor", "last_inspected": "2026-03-19"},
			{"id": int64(4), "asset_type": "road", "location": "downtown", "condition": "fair", "last_inspected": "2026-07-08"},
			{"id": int64(5), "asset_type": "road", "location": "riverside", "condition": "good", "last_inspected": "2026-07-30"},
			{"id": int64(6), "asset_type": "bridge", "location": "riverside", "condition": "fair", "last_inspected": "2026-04-22"},
			{"id": int64(7), "asset_type": "drain", "location": "old_town", "condition": "critical", "last_inspected": "2026-02-11"},
		},
		FactProjects: {
			{"id": int64(1), "department": "water_dept", "name": "ward_3 main upgrade", "location": "ward_3", "status": "active", "estimated_cost": 750_000.0},
			{"id": int64(2), "department": "engineering_dept", "name": "downtown plaza", "location": "downtown", "status": "active", "estimated_cost": 2_400_000.0},
			{"id": int64(3), "department": "engineering_dept", "name": "riverside levee", "location": "riverside", "status": "planned", "estimated_cost": 4_800_000.0},
			{"id": int64(4), "department": "sanitation_dept", "name": "zone_b depot", "location": "zone_b", "status": "active", "estimated_cost": 300_000.0},
		},
		FactEquipment: {
			{"id": int64(1), "department": "water_dept", "equipment_type": "excavator", "location": "ward_3", "status": "operational"},
			{"id": int64(2), "department": "water_dept", "equipment_type": "pump", "location": "ward_12", "status": "operational"},
			{"id": int64(3), "department": "fire_dept", "equipment_type": "engine", "location": "downtown", "status": "operational"},
			{"id": int64(4), "department": "fire_dept", "equipment_type": "ladder", "location": "downtown", "status": "maintenance"},
			{"id": int64(5), "department": "sanitation_dept", "equipment_type": "truck", "location": "zone_a", "status": "operational"},
			{"id": int64(6), "department": "sanitation_dept", "equipment_type": "truck", "location": "zone_b", "status": "operational"},
			{"id": int64(7), "department": "sanitation_dept", "equipment_type": "truck", "location": "zone_b", "status": "maintenance"},
		},
		FactIncidents: {
			{"id": int64(1), "incident_type": "water_leak", "location": "ward_12", "severity_score": int64(3), "status": "open", "reported_at": "2026-08-20T08:30:00Z"},
			{"id": int64(2), "incident_type": "pothole", "location": "downtown", "severity_score": int64(2), "status": "open", "reported_at": "2026-08-18T14:10:00Z"},
			{"id": int64(3), "incident_type": "structure_fire", "location": "riverside", "severity_score": int64(8), "status": "contained", "reported_at": "2026-08-22T02:45:00Z"},
			{"id": int64(4), "incident_type": "gas_smell", "location": "riverside", "severity_score": int64(7), "status": "open", "reported_at": "2026-08-23T11:05:00Z"},
			{"id": int64(5), "incident_type": "flooding", "location": "old_town", "severity_score": int64(6), "status": "open", "reported_at": "2026-08-21T19:20:00Z"},
		},
		FactBins: {
			{"id": int64(1), "zone": "zone_a", "location": "market street", "fill_percent": int64(55), "last_collected": "2026-08-24T06:00:00Z"},
			{"id": int64(2), "zone": "zone_a", "location": "station plaza", "fill_percent": int64(40), "last_collected": "2026-08-24T06:20:00Z"},
			{"id": int64(3), "zone": "zone_b", "location": "harbour walk", "fill_percent": int64(96), "last_collected": "2026-08-22T06:00:00Z"},
			{"id": int64(4), "zone": "zone_b", "location": "old pier", "fill_percent": int64(92), "last_collected": "2026-08-22T06:15:00Z"},
			{"id": int64(5), "zone": "zone_b", "location": "fish market", "fill_percent": int64(97), "last_collected": "2026-08-22T06:30:00Z"},
		},
		FactRoutes: {
			{"id": int64(1), "zone": "zone_a", "name": "A-morning", "status": "active", "coverage": "market street, station plaza"},
			{"id": int64(2), "zone": "zone_a", "name": "A-evening", "status": "active", "coverage": "residential north"},
			{"id": int64(3), "zone": "zone_b", "name": "B-morning", "status": "active", "coverage": "harbour walk, old pier"},
			{"id": int64(4), "zone": "zone_b", "name": "B-reserve", "status": "suspended", "coverage": "fish market"},
		},
		FactSupplies: {
			{"id": int64(1), "item": "influenza vaccine", "location": "ward_12", "quantity": int64(1200), "unit": "dose", "expires_on": "2027-01-31"},
			{"id": int64(2), "item": "influenza vaccine", "location": "downtown", "quantity": int64(800), "unit": "dose", "expires_on": "2027-01-31"},
			{"id": int64(3), "item": "water test kit", "location": "ward_3", "quantity": int64(150), "unit": "kit", "expires_on": "2028-06-30"},
			{"id": int64(4), "item": "protective gear", "location": "downtown", "quantity": int64(300), "unit": "set", "expires_on": ""},
		},
		FactCampaigns: {
			{"id": int64(1), "name": "autumn flu drive", "campaign_type": "vaccination", "location": "ward_12", "status": "active", "starts_on": "2026-08-15", "ends_on": "2026-10-15", "target_population": int64(25000)},
			{"id": int64(2), "name": "hand hygiene week", "campaign_type": "awareness", "location": "downtown", "status": "planned", "starts_on": "2026-09-07", "ends_on": "2026-09-13", "target_population": int64(60000)},
		},
		FactFacilities: {
			{"id": int64(1), "name": "ward_12 clinic", "facility_type": "clinic", "location": "ward_12", "capacity": int64(120), "utilization_percent": int64(70)},
			{"id": int64(2), "name": "downtown clinic", "facility_type": "clinic", "location": "downtown", "capacity": int64(200), "utilization_percent": int64(95)},
			{"id": int64(3), "name": "central fire station", "facility_type": "fire_station", "location": "downtown", "capacity": int64(40), "utilization_percent": int64(60)},
			{"id": int64(4), "name": "riverside sub-station", "facility_type": "fire_station", "location": "riverside", "capacity": int64(15), "utilization_percent": int64(80)},
		},
	}
}
