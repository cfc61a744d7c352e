package dealer

// BuildReport joins vehicles onto dealers.
//
// Dealers keep the order they are given in. Each dealer receives the vehicles
// whose DealerID matches, in the relative order they appear in vehicles. A
// dealer without vehicles gets an empty (non-nil) list, and vehicles whose
// dealer is not supplied are left out. Neither input is modified.
func BuildReport(dealers []DealerRecord, vehicles []VehicleRecord) Report {
	byDealer := make(map[DealerID][]VehicleSummary, len(dealers))
	for _, v := range vehicles {
		byDealer[v.DealerID] = append(byDealer[v.DealerID], v.Summary())
	}

	report := Report{Dealers: make([]DealerReport, 0, len(dealers))}
	for _, d := range dealers {
		// Copy so reports built from the same inputs never share backing arrays.
		matched := byDealer[d.DealerID]
		summaries := make([]VehicleSummary, len(matched))
		copy(summaries, matched)

		report.Dealers = append(report.Dealers, DealerReport{
			DealerID: d.DealerID,
			Name:     d.Name,
			Vehicles: summaries,
		})
	}
	return report
}

// DistinctDealerIDs returns every dealer id referenced by vehicles, once each,
// in first-seen order.
func DistinctDealerIDs(vehicles []VehicleRecord) []DealerID {
	seen := make(map[DealerID]struct{}, len(vehicles))
	ids := make([]DealerID, 0, len(vehicles))
	for _, v := range vehicles {
		if _, ok := seen[v.DealerID]; ok {
			continue
		}
		seen[v.DealerID] = struct{}{}
		ids = append(ids, v.DealerID)
	}
	return ids
}
