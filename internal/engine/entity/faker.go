package entity

import (
	"fmt"
	"math/rand"
	"strings"
)

// fakerValue implements a small fixed subset of the Faker.js method
// surface (person.*, internet.*, company.*, location.*) that the
// original generator exposed via a JS engine. No third-party Go faker
// library exists anywhere in the reference corpus, so this is a direct
// word-list + math/rand implementation covering only the method names
// simulation configs actually reference.
func fakerValue(method string, rng *rand.Rand) any {
	switch strings.ToLower(method) {
	case "person.fullname":
		return firstNames[rng.Intn(len(firstNames))] + " " + lastNames[rng.Intn(len(lastNames))]
	case "person.firstname":
		return firstNames[rng.Intn(len(firstNames))]
	case "person.lastname":
		return lastNames[rng.Intn(len(lastNames))]
	case "internet.email":
		return strings.ToLower(firstNames[rng.Intn(len(firstNames))]+"."+lastNames[rng.Intn(len(lastNames))]) + "@example.com"
	case "internet.username":
		return strings.ToLower(firstNames[rng.Intn(len(firstNames))]) + fmt.Sprint(rng.Intn(1000))
	case "company.name":
		return companyNames[rng.Intn(len(companyNames))]
	case "location.city":
		return cities[rng.Intn(len(cities))]
	case "location.country":
		return countries[rng.Intn(len(countries))]
	case "phone.number":
		return fmt.Sprintf("555-%04d", rng.Intn(10000))
	default:
		return "unsupported faker method: " + method
	}
}

var firstNames = []string{"Alice", "Bob", "Carla", "David", "Elena", "Farid", "Grace", "Hassan", "Ingrid", "Jamal"}
var lastNames = []string{"Nguyen", "Smith", "Garcia", "Müller", "Kowalski", "Tanaka", "Silva", "Khan", "Ivanov", "Dubois"}
var companyNames = []string{"Northwind Systems", "Acme Holdings", "Bluefield Logistics", "Crestmark Analytics", "Delta Harbor Co"}
var cities = []string{"Portland", "Lagos", "Krakow", "Osaka", "Montevideo", "Aarhus", "Nairobi"}
var countries = []string{"Canada", "Nigeria", "Poland", "Japan", "Uruguay", "Denmark", "Kenya"}
