package tracking

// SessionStats accumulates the counters of one scraping session. Callers own
// it and pass it to CompleteScrapingSession.
type SessionStats struct {
	TotalURLs       int
	NewScraped      int
	Rescraped       int
	Scraped         int
	Skipped         int
	Failed          int
	QualityRescrape int
	Expired         int
	qualitySum      float64
}

// AddFilter folds a filtering pass into the counters.
func (s *SessionStats) AddFilter(r *FilterResult) {
	s.TotalURLs += r.TotalCount()
	s.Skipped += r.SkipCount()
	s.QualityRescrape += r.QualityRescrapeCount()
	s.Expired += r.ExpiredCount()
}

// AddTracked records one successfully tracked property.
func (s *SessionStats) AddTracked(d Decision, score float64) {
	s.Scraped++
	if d.Reason == ReasonNew {
		s.NewScraped++
	} else {
		s.Rescraped++
	}
	s.qualitySum += score
}

func (s *SessionStats) AddFailure() {
	s.Failed++
}

// AverageQuality is the mean score of tracked properties, 0 when none.
func (s *SessionStats) AverageQuality() float64 {
	if s.Scraped == 0 {
		return 0
	}
	return s.qualitySum / float64(s.Scraped)
}
