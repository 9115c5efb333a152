package analytics

import "strings"

// Sector pairs a market sector with its representative ETF.
type Sector struct {
	Name string
	ETF  string
}

// Company is a sector constituent.
type Company struct {
	Ticker string
	Name   string
}

// Sectors lists the SPDR sector ETFs in display order.
var Sectors = []Sector{
	{Name: "Technology", ETF: "XLK"},
	{Name: "Healthcare", ETF: "XLV"},
	{Name: "Communication Services", ETF: "XLC"},
	{Name: "Consumer Cyclical", ETF: "XLY"},
	{Name: "Basic Materials", ETF: "XLB"},
	{Name: "Industrials", ETF: "XLI"},
	{Name: "Energy", ETF: "XLE"},
	{Name: "Financial", ETF: "XLF"},
	{Name: "Real Estate", ETF: "XLRE"},
	{Name: "Utilities", ETF: "XLU"},
	{Name: "Consumer Defensive", ETF: "XLP"},
}

var constituents = map[string][]Company{
	"Technology": {
		{"AAPL", "Apple Inc."}, {"MSFT", "Microsoft Corp."}, {"GOOGL", "Alphabet Inc."},
		{"NVDA", "NVIDIA Corp."}, {"INTC", "Intel Corp."}, {"ADBE", "Adobe Inc."},
		{"CSCO", "Cisco Systems"}, {"ORCL", "Oracle Corp."}, {"IBM", "IBM Corp."}, {"HPQ", "HP Inc."},
	},
	"Healthcare": {
		{"JNJ", "Johnson & Johnson"}, {"PFE", "Pfizer Inc."}, {"MRK", "Merck & Co."},
		{"UNH", "UnitedHealth Group"}, {"ABBV", "AbbVie Inc."}, {"TMO", "Thermo Fisher Scientific"},
		{"DHR", "Danaher Corp."}, {"BMY", "Bristol-Myers Squibb"}, {"ABT", "Abbott Laboratories"},
		{"AMGN", "Amgen Inc."},
	},
	"Communication Services": {
		{"META", "Meta Platforms"}, {"GOOG", "Alphabet Inc."}, {"NFLX", "Netflix Inc."},
		{"DIS", "The Walt Disney Co."}, {"CMCSA", "Comcast Corp."}, {"VZ", "Verizon Communications"},
		{"T", "AT&T Inc."}, {"TMUS", "T-Mobile US"}, {"CHTR", "Charter Communications"},
		{"ATVI", "Activision Blizzard"},
	},
	"Consumer Cyclical": {
		{"AMZN", "Amazon.com Inc."}, {"TSLA", "Tesla Inc."}, {"HD", "The Home Depot"},
		{"NKE", "Nike Inc."}, {"MCD", "McDonald's Corp."}, {"SBUX", "Starbucks Corp."},
		{"BKNG", "Booking Holdings"}, {"LOW", "Lowe's Companies"}, {"TJX", "TJX Companies"},
		{"GM", "General Motors"},
	},
	"Basic Materials": {
		{"LIN", "Linde PLC"}, {"BHP", "BHP Group"}, {"RIO", "Rio Tinto"},
		{"APD", "Air Products and Chemicals"}, {"ECL", "Ecolab Inc."}, {"SHW", "Sherwin-Williams"},
		{"NUE", "Nucor Corp."}, {"FCX", "Freeport-McMoRan"}, {"DOW", "Dow Inc."}, {"PPG", "PPG Industries"},
	},
	"Industrials": {
		{"BA", "Boeing Co."}, {"HON", "Honeywell International"}, {"GE", "General Electric"},
		{"MMM", "3M Co."}, {"CAT", "Caterpillar Inc."}, {"UPS", "United Parcel Service"},
		{"UNP", "Union Pacific"}, {"RTX", "Raytheon Technologies"}, {"LMT", "Lockheed Martin"},
		{"DE", "Deere & Co."},
	},
	"Energy": {
		{"XOM", "Exxon Mobil Corp."}, {"CVX", "Chevron Corp."}, {"COP", "ConocoPhillips"},
		{"PSX", "Phillips 66"}, {"SLB", "Schlumberger Ltd."}, {"VLO", "Valero Energy"},
		{"EOG", "EOG Resources"}, {"OXY", "Occidental Petroleum"}, {"HAL", "Halliburton Co."},
		{"PXD", "Pioneer Natural Resources"},
	},
	"Financial": {
		{"JPM", "JPMorgan Chase & Co."}, {"BAC", "Bank of America"}, {"WFC", "Wells Fargo & Co."},
		{"C", "Citigroup Inc."}, {"GS", "Goldman Sachs"}, {"MS", "Morgan Stanley"},
		{"AXP", "American Express"}, {"USB", "U.S. Bancorp"}, {"PNC", "PNC Financial Services"},
		{"BK", "Bank of New York Mellon"},
	},
	"Real Estate": {
		{"PLD", "Prologis Inc."}, {"AMT", "American Tower Corp."}, {"CCI", "Crown Castle International"},
		{"EQIX", "Equinix Inc."}, {"PSA", "Public Storage"}, {"SPG", "Simon Property Group"},
		{"O", "Realty Income Corp."}, {"SBAC", "SBA Communications"}, {"WY", "Weyerhaeuser Co."},
		{"VTR", "Ventas Inc."},
	},
	"Utilities": {
		{"NEE", "NextEra Energy"}, {"DUK", "Duke Energy"}, {"SO", "Southern Co."},
		{"D", "Dominion Energy"}, {"EXC", "Exelon Corp."}, {"AEP", "American Electric Power"},
		{"SRE", "Sempra Energy"}, {"XEL", "Xcel Energy"}, {"ED", "Consolidated Edison"},
		{"ES", "Eversource Energy"},
	},
	"Consumer Defensive": {
		{"PG", "Procter & Gamble"}, {"KO", "Coca-Cola Co."}, {"PEP", "PepsiCo Inc."},
		{"WMT", "Walmart Inc."}, {"COST", "Costco Wholesale Corp."}, {"PM", "Philip Morris International"},
		{"MO", "Altria Group"}, {"KMB", "Kimberly-Clark"}, {"CL", "Colgate-Palmolive"},
		{"STZ", "Constellation Brands"},
	},
}

// Constituents returns the tracked companies of a sector, matched
// case-insensitively. Unknown sectors return nil.
func Constituents(sector string) []Company {
	for name, companies := range constituents {
		if strings.EqualFold(name, sector) {
			out := make([]Company, len(companies))
			copy(out, companies)
			return out
		}
	}
	return nil
}

// SectorETFs returns the ETF tickers of all sectors in display order.
func SectorETFs() []string {
	out := make([]string, len(Sectors))
	for i, s := range Sectors {
		out[i] = s.ETF
	}
	return out
}
