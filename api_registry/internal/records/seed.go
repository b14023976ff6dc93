package records

// DemoSeed returns the records the in-memory store starts with in
// development: a BIO profile on 🚀 and a REDIRECT on "cool".
func DemoSeed() []*Record {
	return []*Record{
		{
			Subdomain: "🚀",
			Kind:      KindBio,
			OwnerID:   "user_1",
			Bio: &Bio{
				Title:       "Rocket Man",
				Description: "To the moon and beyond! 🌑",
				AvatarURL:   "https://api.dicebear.com/7.x/avataaars/svg?seed=Rocket",
				Theme:       ThemeColorful,
				Links: []Link{
					{Title: "My Website", URL: "https://example.com"},
					{Title: "Launch Schedule", URL: "https://nasa.gov"},
				},
				Name:     "Elon Musk (Parody)",
				JobTitle: "Chief Rocket Officer",
				Company:  "SpaceX",
				Location: "Mars Colony 1",
				Phone:    "+1-555-MARS-001",
				Email:    "elon@mars.com",
				Socials: map[string]string{
					"twitter": "https://twitter.com/elonmusk",
					"website": "https://spacex.com",
				},
			},
		},
		{
			Subdomain: "cool",
			Kind:      KindRedirect,
			OwnerID:   "user_2",
			TargetURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
	}
}
