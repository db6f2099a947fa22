package models

import "strings"

// Category is one entry of the fixed listing taxonomy.
type Category struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Icon          string   `json:"icon"`
	MinImages     int      `json:"min_images"`
	MaxImages     int      `json:"max_images"`
	Subcategories []string `json:"subcategories"`
}

// AllCategories is the browse sentinel meaning "no category filter".
const AllCategories = "All"

var categories = []Category{
	{ID: "vehicles", Name: "Vehicles", Icon: "car", MinImages: 1, MaxImages: 10,
		Subcategories: []string{"Cars", "Motorcycles", "Trucks", "Boats", "Spare Parts"}},
	{ID: "property", Name: "Property", Icon: "home", MinImages: 1, MaxImages: 15,
		Subcategories: []string{"Apartments for Rent", "Apartments for Sale", "Houses", "Land", "Commercial"}},
	{ID: "electronics", Name: "Electronics", Icon: "smartphone", MinImages: 1, MaxImages: 8,
		Subcategories: []string{"Mobile Phones", "Computers", "TVs & Audio", "Cameras", "Gaming", "Accessories"}},
	{ID: "services", Name: "Services", Icon: "briefcase", MinImages: 1, MaxImages: 5,
		Subcategories: []string{"Cleaning", "Repairs", "Moving", "Tutoring", "Beauty", "Events"}},
	{ID: "fashion", Name: "Fashion", Icon: "shirt", MinImages: 1, MaxImages: 8,
		Subcategories: []string{"Men", "Women", "Kids", "Shoes", "Watches & Jewelry"}},
	{ID: "home-garden", Name: "Home & Garden", Icon: "sofa", MinImages: 1, MaxImages: 8,
		Subcategories: []string{"Furniture", "Appliances", "Decor", "Garden", "Tools"}},
	{ID: "jobs", Name: "Jobs", Icon: "users", MinImages: 0, MaxImages: 3,
		Subcategories: []string{"Full Time", "Part Time", "Freelance", "Internships"}},
	{ID: "pets", Name: "Pets", Icon: "paw", MinImages: 1, MaxImages: 6,
		Subcategories: []string{"Dogs", "Cats", "Birds", "Fish", "Pet Supplies"}},
	{ID: "sports", Name: "Sports & Hobbies", Icon: "bike", MinImages: 1, MaxImages: 8,
		Subcategories: []string{"Bicycles", "Fitness", "Outdoor", "Musical Instruments", "Books"}},
	{ID: "other", Name: "Other", Icon: "grid", MinImages: 0, MaxImages: 5},
}

// Categories returns a copy of the taxonomy in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	for i, c := range categories {
		c.Subcategories = append([]string(nil), c.Subcategories...)
		out[i] = c
	}
	return out
}

// LookupCategory resolves a stable ID or a display name, ignoring case.
func LookupCategory(key string) (Category, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Category{}, false
	}
	for _, c := range categories {
		if strings.EqualFold(c.ID, key) || strings.EqualFold(c.Name, key) {
			return c, true
		}
	}
	return Category{}, false
}

func (c Category) HasSubcategory(name string) bool {
	for _, s := range c.Subcategories {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// IsAllCategories reports whether a category filter value selects everything.
func IsAllCategories(category string) bool {
	category = strings.TrimSpace(category)
	return category == "" || strings.EqualFold(category, AllCategories)
}
