package sitetype

// lexicon holds the two vocabularies scored for one site type:
// high-confidence multi-word phrases and single supporting keywords.
type lexicon struct {
	phrases  []string
	keywords []string
}

// lexiconOrder fixes first-seen order for tie breaking.
var lexiconOrder = []Type{
	Banking, Ecommerce, News, Corporate, Educational, Healthcare,
	Government, NonProfit, Entertainment, RealEstate, Legal,
	Restaurant, Technology,
}

var lexicons = map[Type]lexicon{
	Banking: {
		phrases: []string{
			"online banking", "checking account", "savings account",
			"mortgage rates", "credit card", "wealth management",
			"routing number", "personal loans", "business banking",
		},
		keywords: []string{
			"bank", "banking", "loan", "mortgage", "deposit", "atm",
			"credit", "finance", "investment", "insurance",
		},
	},
	Ecommerce: {
		phrases: []string{
			"add to cart", "free shipping", "shop now", "product catalog",
			"checkout process", "return policy", "gift card", "best sellers",
		},
		keywords: []string{
			"shop", "cart", "product", "products", "sale", "store",
			"buy", "price", "shipping", "order",
		},
	},
	News: {
		phrases: []string{
			"breaking news", "latest news", "top stories", "press release",
			"news archive", "editorial board", "opinion piece",
		},
		keywords: []string{
			"news", "article", "headline", "reporter", "journalism",
			"politics", "weather", "sports", "opinion",
		},
	},
	Corporate: {
		phrases: []string{
			"about us", "our team", "case studies", "our services",
			"contact us", "careers at", "press room", "investor relations",
		},
		keywords: []string{
			"company", "business", "services", "solutions", "clients",
			"careers", "team", "leadership",
		},
	},
	Educational: {
		phrases: []string{
			"course catalog", "admissions office", "financial aid",
			"academic calendar", "student life", "degree programs",
			"faculty directory",
		},
		keywords: []string{
			"university", "college", "school", "course", "student",
			"faculty", "campus", "tuition", "academic", "degree",
		},
	},
	Healthcare: {
		phrases: []string{
			"patient portal", "find a doctor", "medical records",
			"urgent care", "health services", "book an appointment",
		},
		keywords: []string{
			"health", "medical", "doctor", "patient", "clinic",
			"hospital", "treatment", "care", "pharmacy",
		},
	},
	Government: {
		phrases: []string{
			"public records", "city council", "official website",
			"tax forms", "permits and licenses", "municipal services",
		},
		keywords: []string{
			"government", "federal", "state", "county", "city",
			"agency", "department", "public", "official",
		},
	},
	NonProfit: {
		phrases: []string{
			"donate now", "our mission", "get involved", "volunteer opportunities",
			"annual report", "make a difference",
		},
		keywords: []string{
			"donate", "donation", "charity", "nonprofit", "volunteer",
			"mission", "community", "foundation", "cause",
		},
	},
	Entertainment: {
		phrases: []string{
			"watch now", "box office", "episode guide", "live stream",
			"ticket sales", "upcoming events",
		},
		keywords: []string{
			"movie", "music", "show", "episode", "stream", "game",
			"event", "tickets", "entertainment", "video",
		},
	},
	RealEstate: {
		phrases: []string{
			"homes for sale", "property listings", "open house",
			"real estate agent", "mortgage calculator", "square feet",
		},
		keywords: []string{
			"property", "listing", "realty", "homes", "rent",
			"apartment", "broker", "estate",
		},
	},
	Legal: {
		phrases: []string{
			"practice areas", "free consultation", "attorneys at law",
			"legal services", "case results", "law firm",
		},
		keywords: []string{
			"law", "legal", "attorney", "lawyer", "litigation",
			"counsel", "court", "justice",
		},
	},
	Restaurant: {
		phrases: []string{
			"view menu", "make a reservation", "order online",
			"opening hours", "private dining", "daily specials",
		},
		keywords: []string{
			"menu", "restaurant", "reservation", "dining", "food",
			"chef", "cuisine", "takeout", "delivery",
		},
	},
	Technology: {
		phrases: []string{
			"api documentation", "developer tools", "open source",
			"release notes", "getting started", "software development",
			"cloud platform",
		},
		keywords: []string{
			"software", "technology", "api", "platform", "developer",
			"cloud", "data", "app", "integration", "saas",
		},
	},
}

// corporateFallbackKeywords trigger the generic corporate fallback when no
// lexicon clears the score threshold.
var corporateFallbackKeywords = []string{"company", "business", "services"}
