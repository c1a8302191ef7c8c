package webui

import "time"

var ecoTips = []string{
	"Turn off lights when you leave a room to save energy.",
	"Use a reusable water bottle instead of disposable plastic ones.",
	"Try carpooling or using public transport to reduce carbon emissions.",
	"Plant a tree or start a small garden to support local biodiversity.",
	"Reduce meat consumption to lower your carbon footprint.",
}

// TipOfTheDay picks a tip by day of month.
func TipOfTheDay(now time.Time) string {
	return ecoTips[now.Day()%len(ecoTips)]
}
