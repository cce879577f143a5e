package registry

const (
	juetName = "Jaypee University of Engineering & Technology"
	juetCode = "JUET"
)

func seedDatabase(now string) database {
	recs := []Record{
		{
			ID: "JUET001", StudentName: "Prashant Singh", EnrollmentNumber: "231B225",
			RegistrationNumber: "REG2027001", Degree: "B.Tech", Branch: "Computer Science & Engineering",
			University: juetName, GraduationDate: "2027-06-15", CGPA: "6.07", AcademicYear: "2023-2027",
			CertificateType: "Grade Card", CertificateNumber: "JUET/CSE/2027/001", Status: "active",
		},
		{
			ID: "JUET002", StudentName: "Rahul Sharma", EnrollmentNumber: "231B224",
			RegistrationNumber: "REG2027002", Degree: "B.Tech", Branch: "Electronics & Communication Engineering",
			University: juetName, GraduationDate: "2027-06-15", CGPA: "7.2", AcademicYear: "2023-2027",
			CertificateType: "Grade Card", CertificateNumber: "JUET/ECE/2027/002", Status: "active",
		},
		{
			ID: "JUET003", StudentName: "Anjali Patel", EnrollmentNumber: "231B223",
			RegistrationNumber: "REG2027003", Degree: "B.Tech", Branch: "Information Technology",
			University: juetName, GraduationDate: "2027-06-15", CGPA: "8.1", AcademicYear: "2023-2027",
			CertificateType: "Grade Card", CertificateNumber: "JUET/IT/2027/003", Status: "active",
		},
		{
			ID: "JUET004", StudentName: "Neha Verma", EnrollmentNumber: "191B101",
			RegistrationNumber: "REG2023004", Degree: "Bachelor of Technology", Branch: "Mechanical Engineering",
			University: juetName, GraduationDate: "2023-06-15", CGPA: "7.8", AcademicYear: "2019-2023",
			CertificateType: "Degree Certificate", CertificateNumber: "JUET/ME/2023/004", Status: "graduated",
		},
		{
			ID: "JUET005", StudentName: "Arjun Mehta", EnrollmentNumber: "201B150",
			RegistrationNumber: "REG2024005", Degree: "Bachelor of Technology", Branch: "Civil Engineering",
			University: juetName, GraduationDate: "2024-06-15", CGPA: "8.4", AcademicYear: "2020-2024",
			CertificateType: "Degree Certificate", CertificateNumber: "JUET/CE/2024/005", Status: "graduated",
		},
	}
	return database{
		Certificates: recs,
		Metadata: Metadata{
			UniversityName:    juetName,
			UniversityCode:    juetCode,
			Location:          "Guna, Madhya Pradesh",
			Website:           "https://www.juet.ac.in",
			TotalCertificates: len(recs),
			LastUpdated:       now,
		},
	}
}
