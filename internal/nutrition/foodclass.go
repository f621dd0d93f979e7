package nutrition

// FoodClass is the closed set of food classes the image classifier can
// produce. The classifier collaborator and the lookup client share this
// enumeration so an unrecognized class is a typed condition instead of a
// silent string mismatch.
type FoodClass string

const (
	ClassApple       FoodClass = "apple"
	ClassBanana      FoodClass = "banana"
	ClassBread       FoodClass = "bread"
	ClassBurger      FoodClass = "burger"
	ClassDonut       FoodClass = "donut"
	ClassFrenchFries FoodClass = "french fries"
	ClassHotDog      FoodClass = "hot dog"
	ClassPizza       FoodClass = "pizza"
	ClassRice        FoodClass = "rice"
	ClassSalad       FoodClass = "salad"
	ClassSandwich    FoodClass = "sandwich"
	ClassSteak       FoodClass = "steak"
)

// Classes is ordered to match the classifier model's output vector: index i
// of the probability vector corresponds to Classes[i].
var Classes = []FoodClass{
	ClassApple,
	ClassBanana,
	ClassBread,
	ClassBurger,
	ClassDonut,
	ClassFrenchFries,
	ClassHotDog,
	ClassPizza,
	ClassRice,
	ClassSalad,
	ClassSandwich,
	ClassSteak,
}

// ClassAt maps a classifier output index to its class.
func ClassAt(index int) (FoodClass, bool) {
	if index < 0 || index >= len(Classes) {
		return "", false
	}
	return Classes[index], true
}

// ParseClass maps a class name string back to the enumeration.
func ParseClass(name string) (FoodClass, bool) {
	for _, c := range Classes {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// Query returns the free-text search term sent to the nutrition database.
func (c FoodClass) Query() string {
	return string(c)
}
