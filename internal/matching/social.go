package matching

import "math"

// SocialGraph maps a user id to the ids of their connections.
type SocialGraph map[string][]string

// Engagement maps an entity id to the ids of users who engaged with it.
type Engagement map[string][]string

const (
	// friendSaturation is the number of engaged friends at which the friend
	// component reaches 1-1/e.
	friendSaturation = 3.0
	// crowdHalf is the engagement count at which the crowd component is 0.5.
	crowdHalf = 50.0
)

// SocialScore combines how many of the user's connections engaged with the
// entity with the entity's overall engagement. A user without connections
// scores 0.
func SocialScore(connections []string, engagers []string) float64 {
	if len(connections) == 0 {
		return 0
	}
	engaged := make(map[string]struct{}, len(engagers))
	for _, u := range engagers {
		engaged[u] = struct{}{}
	}
	friends := 0
	seen := make(map[string]struct{}, len(connections))
	for _, f := range connections {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		if _, ok := engaged[f]; ok {
			friends++
		}
	}
	friendPart := 1 - math.Exp(-float64(friends)/friendSaturation)
	crowd := float64(len(engaged))
	crowdPart := crowd / (crowd + crowdHalf)
	return clamp01(0.8*friendPart + 0.2*crowdPart)
}

// CoEngagementScore is the Jaccard overlap of the audiences of two entities.
func CoEngagementScore(a, b []string) float64 {
	sa, sb := TagSet{}, TagSet{}
	for _, u := range a {
		sa[u] = struct{}{}
	}
	for _, u := range b {
		sb[u] = struct{}{}
	}
	return Jaccard(sa, sb)
}
