package biz

import (
	"regexp"
	"strings"
)

// Predicate 文本谓词，用于可替换的启发式判断。
type Predicate func(text string) bool

var clockTime = regexp.MustCompile(`(?i)\b\d{1,2}(:\d{2})?\s*(a\.m\.|p\.m\.|am\b|pm\b)`)

// HoursWithoutTimes 检索内容提到图书馆开放时间但没有任何具体时刻时返回 true。
// 这类页面通常用日历组件动态渲染时间表，抓取结果中缺失具体数据。
func HoursWithoutTimes(text string) bool {
	l := strings.ToLower(text)
	return strings.Contains(l, "library") && strings.Contains(l, "hour") && !clockTime.MatchString(text)
}

var defaultCampusTopics = []string{
	"admission", "apply", "application", "enroll", "registrar", "register", "tuition", "fee",
	"financial aid", "scholarship", "housing", "dorm", "residence", "dining", "meal",
	"library", "hours", "course", "class", "degree", "major", "minor", "program", "catalog",
	"semester", "calendar", "deadline", "campus", "student", "faculty", "professor", "department",
	"parking", "transcript", "graduate", "undergraduate", "orientation", "advising", "advisor",
	"counseling", "health", "career", "international", "visa", "transfer", "gpa", "exam",
	"office", "contact", "email", "phone", "address", "location", "building", "event",
	"athletics", "club", "organization", "university", "college", "school", "bookstore", "id card",
}

// KeywordFilter 返回一个离题判断谓词：问题不包含任何校园相关关键词时视为离题。
// topics 为空时使用内置关键词表。
func KeywordFilter(topics ...string) Predicate {
	if len(topics) == 0 {
		topics = defaultCampusTopics
	}
	lowered := make([]string, len(topics))
	for i, t := range topics {
		lowered[i] = strings.ToLower(t)
	}
	return func(question string) bool {
		q := strings.ToLower(question)
		for _, t := range lowered {
			if strings.Contains(q, t) {
				return false
			}
		}
		return true
	}
}
